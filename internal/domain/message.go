package domain

import "time"

// Message is a direct message between two users. Content is opaque to the
// server: clients encrypt before sending and decrypt after receiving, so the
// stored value is a base64 ciphertext blob.
type Message struct {
	ID         string     `bson:"_id" json:"id"`
	SenderID   string     `bson:"sender_id" json:"senderId"`
	ReceiverID string     `bson:"receiver_id" json:"receiverId"`
	Content    string     `bson:"content" json:"content"`
	CreatedAt  time.Time  `bson:"created_at" json:"createdAt"`
	ReadAt     *time.Time `bson:"read_at,omitempty" json:"readAt,omitempty"`
}

// ConversationKey returns a canonical key for the pair, independent of who
// sent first. Used for cache keys and event partitioning.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
