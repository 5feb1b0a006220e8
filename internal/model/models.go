package model

// AllModels lists every model registered for auto migration.
var AllModels = []interface{}{
	&ChatSession{},
	&ChatMessage{},
	&MessageEmbedding{},
}
