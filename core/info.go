package core

type DatabaseInfo struct {
	Source     string `json:"source"`
	PageSize   uint32 `json:"pageSize"`
	CellCount  uint16 `json:"cellCount"`  // cells on the schema page
	TableCount int    `json:"tableCount"` // user tables after filtering
	Digest     string `json:"digest"`     // BLAKE3 of the image, hex
	Size       int    `json:"size"`
}
