package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataDir    string
	backendURL string
	dbOK       bool
}

func NewInfoHandler(dataDir, backendURL string, dbOK bool) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, backendURL: backendURL, dbOK: dbOK}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Backend  string   `json:"backend" doc:"Analysis backend base URL"`
	DB       bool     `json:"db" doc:"Whether run history is recorded"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"dashboard", "datastar", "layers"}
	if h.dbOK {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-eco",
		Version:  Version,
		DataDir:  h.dataDir,
		Backend:  h.backendURL,
		DB:       h.dbOK,
		Features: features,
	}}, nil
}
