package unitofwork

type EventType string

const (
	PrePersist  EventType = "prePersist"
	PostPersist EventType = "postPersist"
	PreUpdate   EventType = "preUpdate"
	PostUpdate  EventType = "postUpdate"
	PreRemove   EventType = "preRemove"
	PostRemove  EventType = "postRemove"
)

// LifecycleEvent is published around every write of an entity.
type LifecycleEvent struct {
	Type       EventType
	EntityName string
	Entity     any
}
