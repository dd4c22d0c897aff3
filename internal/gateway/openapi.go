package gateway

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/varnlund/gridlink/model"
)

//go:embed openapi.yaml
var openapiSpec []byte

var (
	openapiOnce sync.Once
	openapiJSON []byte
	openapiErr  error
)

// loadOpenAPIDocument parses and validates the embedded API document once
// and renders it as JSON.
func loadOpenAPIDocument() ([]byte, error) {
	openapiOnce.Do(func() {
		loader := openapi3.NewLoader()
		loader.IsExternalRefsAllowed = false

		doc, err := loader.LoadFromData(openapiSpec)
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiJSON, openapiErr = json.Marshal(doc)
	})
	return openapiJSON, openapiErr
}

func handleOpenAPIDocument() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		doc, err := loadOpenAPIDocument()
		if err != nil {
			WriteError(w, model.NewInternalError())
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(doc)
	}
}
