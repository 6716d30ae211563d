package request

type RunBorg struct {
	RequestedBy string `json:"requested_by" validate:"required,max=128"`
}

type CreateBackup struct {
	Kind        string   `json:"kind" validate:"required,oneof=files database both borg"`
	RequestedBy string   `json:"requested_by" validate:"required,max=128"`
	Excludes    []string `json:"excludes" validate:"omitempty,dive,min=1,max=256"`
}
