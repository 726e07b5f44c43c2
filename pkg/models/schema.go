package models

import "otakuhub/pkg/repository"

// Collection schemas. Relation fields are declared here rather than
// discovered from the struct types at runtime; the repository embeds the
// referenced documents on create/update.

var UserSchema = repository.Schema{
	Collection: "user",
	Unique:     []string{"username", "email"},
	Timestamps: true,
}

var GenreSchema = repository.Schema{
	Collection: "genre",
	Unique:     []string{"name"},
}

var DemographicSchema = repository.Schema{
	Collection: "demographic",
	Unique:     []string{"name"},
}

var ProducerSchema = repository.Schema{
	Collection: "producer",
	Unique:     []string{"name"},
}

var AnimeSchema = repository.Schema{
	Collection: "anime",
	Relations: []repository.Relation{
		{Field: "genres", Target: "genre", Many: true},
		{Field: "demographics", Target: "demographic", Many: true},
		{Field: "producers", Target: "producer", Many: true},
	},
}

var MangaSchema = repository.Schema{
	Collection: "manga",
	Relations: []repository.Relation{
		{Field: "genres", Target: "genre", Many: true},
		{Field: "demographics", Target: "demographic", Many: true},
		{Field: "producers", Target: "producer", Many: true},
	},
}

var AnimeReviewSchema = repository.Schema{
	Collection: "anime_review",
	Timestamps: true,
	Relations: []repository.Relation{
		{Field: "user", Target: "user", Omit: []string{"password"}},
		{Field: "anime", Target: "anime"},
	},
}

var MangaReviewSchema = repository.Schema{
	Collection: "manga_review",
	Timestamps: true,
	Relations: []repository.Relation{
		{Field: "user", Target: "user", Omit: []string{"password"}},
		{Field: "manga", Target: "manga"},
	},
}
