package domainmessage

// WalletStatus is the per-address state the chain engine tracks to
// validate future transactions.
type WalletStatus struct {
	Balance Amount
	MaxID   uint32
}

// DefaultWalletStatus is the status of an address that has never
// appeared in the chain.
var DefaultWalletStatus = WalletStatus{Balance: 0, MaxID: 0}
