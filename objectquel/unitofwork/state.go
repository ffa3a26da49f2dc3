package unitofwork

type DirtyState int

const (
	StateNotManaged DirtyState = iota
	StateNew
	StateDirty
	StateDeleted
	StateUnchanged
)

func (s DirtyState) String() string {
	switch s {
	case StateNotManaged:
		return "NotManaged"
	case StateNew:
		return "New"
	case StateDirty:
		return "Dirty"
	case StateDeleted:
		return "Deleted"
	case StateUnchanged:
		return "Unchanged"
	}
	return "Unknown"
}
