package request

type RestoreArtifact struct {
	Mode string `json:"mode" validate:"required,oneof=sandbox overwrite"`
}
