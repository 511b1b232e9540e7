package growthledger

import "github.com/xraph/growthledger/id"

// ID is the primary identifier type for all growth ledger entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
