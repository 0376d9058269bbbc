package services

import (
	"fmt"

	"github.com/edvisory/portal-messaging/pkg/internal/models"
)

type ThreadKind uint8

const (
	ThreadConversation = ThreadKind(iota)
	ThreadGroup
	ThreadBroadcast
)

func (v ThreadKind) String() string {
	switch v {
	case ThreadConversation:
		return "conversation"
	case ThreadGroup:
		return "group"
	case ThreadBroadcast:
		return "broadcast"
	default:
		return fmt.Sprintf("thread(%d)", uint8(v))
	}
}

// ThreadRef points at exactly one message container.
type ThreadRef struct {
	Kind ThreadKind
	ID   uint
}

func ConversationRef(id uint) ThreadRef { return ThreadRef{Kind: ThreadConversation, ID: id} }
func GroupRef(id uint) ThreadRef        { return ThreadRef{Kind: ThreadGroup, ID: id} }
func BroadcastRef(id uint) ThreadRef    { return ThreadRef{Kind: ThreadBroadcast, ID: id} }

func (v ThreadRef) String() string {
	return fmt.Sprintf("%s#%d", v.Kind, v.ID)
}

// Attach points the message at the thread and clears the other targets.
func (v ThreadRef) Attach(message *models.Message) {
	id := v.ID
	message.ConversationID, message.GroupID, message.BroadcastID = nil, nil, nil
	switch v.Kind {
	case ThreadConversation:
		message.ConversationID = &id
	case ThreadGroup:
		message.GroupID = &id
	case ThreadBroadcast:
		message.BroadcastID = &id
	}
}

// ThreadOf recovers the thread a stored message belongs to.
func ThreadOf(message models.Message) (ThreadRef, error) {
	var refs []ThreadRef
	if message.ConversationID != nil {
		refs = append(refs, ConversationRef(*message.ConversationID))
	}
	if message.GroupID != nil {
		refs = append(refs, GroupRef(*message.GroupID))
	}
	if message.BroadcastID != nil {
		refs = append(refs, BroadcastRef(*message.BroadcastID))
	}
	if len(refs) != 1 {
		return ThreadRef{}, models.ErrMessageTarget
	}
	return refs[0], nil
}
