package uow

// Propagation controls how a requested scope relates to an already-open
// ambient transaction.
type Propagation int

// Propagation policies.
const (
	// PropagationExisting joins the ambient transaction when one is open,
	// otherwise starts a new one. This is the default policy. A failure
	// inside a joined scope dooms the whole boundary it joined.
	PropagationExisting Propagation = 0
	// PropagationNew always starts a fresh transaction on a fresh
	// connection, independent of any ambient one.
	PropagationNew Propagation = 1
	// PropagationNested opens a savepoint under the ambient transaction.
	// A failure inside a nested scope is contained by the savepoint and
	// never dooms the ambient boundary.
	PropagationNested Propagation = 2
)

// TxLevel defines the database transaction isolation level.
type TxLevel int

// Transaction isolation levels from lowest to highest isolation.
const (
	TxLevelDefault    TxLevel = 0 // Default is TxReadCommitted
	TxReadUncommitted TxLevel = 1 // Lowest isolation level
	TxReadCommitted   TxLevel = 2 // Prevents dirty reads
	TxRepeatableRead  TxLevel = 3 // Prevents non-repeatable reads
	TxSerializable    TxLevel = 4 // Highest isolation level
)

// TxMode defines the database transaction access mode.
type TxMode int

// Transaction access modes.
const (
	TxModeDefault TxMode = 0 // TxReadWrite
	TxReadOnly    TxMode = 1
	TxReadWrite   TxMode = 2
)

// normalized resolves the default to the concrete level it stands for.
func (l TxLevel) normalized() TxLevel {
	if l == TxLevelDefault {
		return TxReadCommitted
	}
	return l
}

// normalized resolves the default to the concrete mode it stands for.
func (m TxMode) normalized() TxMode {
	if m == TxModeDefault {
		return TxReadWrite
	}
	return m
}
