package common

const (
	SrcFileExtension = ".ruse"
	ProjectFileName  = "ruse-proj.toml"
	RuseVersion      = "0.1.0"
)
