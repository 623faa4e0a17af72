/*
Package wallet applies balance operations to wallets.

Every operation is a read-modify-write of one wallet row:

	read the wallet and its version
	apply a models.Wallet primitive to a copy
	write the copy only if the version is unchanged, with an audit entry

A version conflict re-reads and tries again, a bounded number of times with
a linear backoff. Business errors (insufficient funds, limits, inactive
wallet) are returned immediately.

Usage:

	svc := wallet.NewService(repo, cache, wallet.WalletConfig{}, metrics, logger)

	w, err := svc.GetOrCreate(ctx, ownerID, "USD")
	_, err = svc.Credit(ctx, wallet.Target{OwnerID: ownerID, Currency: "USD"}, amount)

Debit and Reserve run the daily and monthly limit guard inside the same
write. Balances are cached in Redis and invalidated after every write.
*/
package wallet
