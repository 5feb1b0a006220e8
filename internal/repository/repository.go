package repository

import "gorm.io/gorm"

// Repositories groups all repositories behind one handle.
type Repositories struct {
	DB        *gorm.DB
	Chat      *ChatRepository
	Embedding *EmbeddingRepository
}

// NewRepositories creates all repositories.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:        db,
		Chat:      NewChatRepository(db),
		Embedding: NewEmbeddingRepository(db),
	}
}
