package request

type UpdateSettings struct {
	NotifyEmail      *string `json:"notify_email" validate:"omitempty,email"`
	BorgRepoPath     string  `json:"borg_repo_path" validate:"required"`
	IncludeFiles     bool    `json:"include_files"`
	IncludeDatabase  bool    `json:"include_database"`
	CompressionLevel int     `json:"compression_level" validate:"min=1,max=9"`
}

type UpdateFilter struct {
	Pattern     string  `json:"pattern" validate:"required,min=1,max=256"`
	Enabled     bool    `json:"enabled"`
	Description *string `json:"description" validate:"omitempty,max=512"`
}
