// Package domain defines the persistence models for listings, conversations,
// messages, and read markers. These types are mapped with GORM and form the
// core data layer of the messaging service.
package domain

import (
	"time"
)

// Property is the catalog view of a listing. The messaging core only reads it
// to learn who owns a listing; rows are written by the catalog seeder.
type Property struct {
	ID        string    `json:"id"        gorm:"type:varchar(64);primaryKey"`
	OwnerID   string    `json:"ownerId"   gorm:"type:varchar(64);not null;index:idx_property_owner"`
	Title     string    `json:"title"     gorm:"type:varchar(255);not null;default:''"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Property.
func (Property) TableName() string { return "properties" }

// Conversation is the thread between a listing's owner and one prospective
// client. At most one exists per (PropertyID, ClientID).
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - PropertyID / ClientID: unique pair (ux_conv_property_client).
//   - OwnerID: copied from the property at creation; never equal to ClientID.
//   - LastSequence: sequence number of the newest message (0 when empty).
//   - LastMessageAt: time of the newest message, nil when empty.
type Conversation struct {
	ID            string     `json:"conversationId"          gorm:"type:char(36);primaryKey"`
	PropertyID    string     `json:"propertyId"              gorm:"type:varchar(64);not null;uniqueIndex:ux_conv_property_client,priority:1"`
	OwnerID       string     `json:"ownerId"                 gorm:"type:varchar(64);not null;index:idx_conv_owner;check:chk_conv_parties,owner_id <> client_id"`
	ClientID      string     `json:"clientId"                gorm:"type:varchar(64);not null;uniqueIndex:ux_conv_property_client,priority:2;index:idx_conv_client"`
	LastSequence  int64      `json:"lastSequence"            gorm:"not null;default:0"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// HasParticipant reports whether userID is the owner or the client.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.OwnerID || userID == c.ClientID)
}

// Counterpart returns the other participant, or "" when userID is not one.
func (c *Conversation) Counterpart(userID string) string {
	switch userID {
	case c.OwnerID:
		return c.ClientID
	case c.ClientID:
		return c.OwnerID
	}
	return ""
}

// Message is one immutable utterance in a conversation. SequenceNumber starts
// at 1 and increases by exactly one per accepted message.
//
// IdempotencyKey is optional; when present it is unique within the
// conversation so a retried send maps onto the stored row.
type Message struct {
	ID             string    `json:"messageId"      gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversationId" gorm:"type:char(36);not null;uniqueIndex:ux_msg_conv_seq,priority:1;uniqueIndex:ux_msg_conv_idem,priority:1"`
	SequenceNumber int64     `json:"sequenceNumber" gorm:"not null;uniqueIndex:ux_msg_conv_seq,priority:2;check:chk_msg_seq,sequence_number > 0"`
	SenderID       string    `json:"senderId"       gorm:"type:varchar(64);not null"`
	Body           string    `json:"body"           gorm:"type:text;not null"`
	IdempotencyKey *string   `json:"-"              gorm:"type:varchar(200);uniqueIndex:ux_msg_conv_idem,priority:2"`
	SentAt         time.Time `json:"sentAt"         gorm:"not null"`

	// Conversation is the parent thread. Messages are cascade-deleted with it.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// ReadMarker records the highest sequence number a participant has read in a
// conversation. It only moves forward.
type ReadMarker struct {
	ConversationID   string    `json:"conversationId"   gorm:"type:char(36);primaryKey"`
	UserID           string    `json:"userId"           gorm:"type:varchar(64);primaryKey"`
	LastReadSequence int64     `json:"lastReadSequence" gorm:"not null;default:0"`
	UpdatedAt        time.Time `json:"updatedAt"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ReadMarker.
func (ReadMarker) TableName() string { return "read_markers" }
