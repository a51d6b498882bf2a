package ledger

// Entity is the contract both record types satisfy so that stores and
// adapters can be written once. The With* methods return copies; records are
// passed by value throughout.
type Entity[E any] interface {
	EntityID() string
	WithID(id string) E
	WithOwner(ownerID string) E
	Normalized() E
	Validate() error
}
