package core

type Services struct {
	Job      *JobService
	Artifact *ArtifactService
	Restore  *RestoreService
	Settings *SettingsService
	Filter   *FilterService
}

func NewServices(db DB) *Services {
	return &Services{
		Job:      NewJobService(db),
		Artifact: NewArtifactService(db),
		Restore:  NewRestoreService(db),
		Settings: NewSettingsService(db),
		Filter:   NewFilterService(db),
	}
}
