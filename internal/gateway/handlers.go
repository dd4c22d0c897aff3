package gateway

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/varnlund/gridlink/internal/forms"
	"github.com/varnlund/gridlink/internal/ionapi"
	"github.com/varnlund/gridlink/internal/mi"
	"github.com/varnlund/gridlink/model"
)

func handleBookmark(client *forms.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var bm model.Bookmark
		if err := ReadJSON(r, &bm); err != nil {
			WriteError(w, err)
			return
		}
		resp, err := client.ExecuteBookmark(r.Context(), &bm)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleSearch(client *forms.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sr model.SearchRequest
		if err := ReadJSON(r, &sr); err != nil {
			WriteError(w, err)
			return
		}
		resp, err := client.ExecuteSearch(r.Context(), &sr)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleCommand(client *forms.Client) http.HandlerFunc {
	type commandRequest struct {
		CommandType  string `json:"commandType"`
		CommandValue string `json:"commandValue"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd commandRequest
		if err := ReadJSON(r, &cmd); err != nil {
			WriteError(w, err)
			return
		}
		if cmd.CommandType == "" {
			WriteError(w, model.NewValidationError(model.FieldError{
				Field:   "commandType",
				Message: "commandType is required",
			}))
			return
		}
		resp, err := client.ExecuteCommand(r.Context(), cmd.CommandType, cmd.CommandValue)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleFormRequest(client *forms.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.FormRequest
		if err := ReadJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		resp, err := client.ExecuteRequest(r.Context(), &req)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleTranslate(client *forms.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.TranslationRequest
		if err := ReadJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		resp, err := client.Translate(r.Context(), &req)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleEnvironment(client *forms.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env, err := client.GetEnvironmentContext(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, env)
	}
}

func handleUserContext(client *forms.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, client.UserContext())
	}
}

func handleLogoff(client *forms.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := client.Logoff(r.Context()); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "logged off"})
	}
}

func handleMIExecute(client *mi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req *model.MIRequest
		var err error
		if r.Method == http.MethodPost {
			req = &model.MIRequest{}
			if err = ReadJSON(r, req); err != nil {
				WriteError(w, err)
				return
			}
		} else {
			req = miRequestFromQuery(r)
		}
		req.Program = chi.URLParam(r, "program")
		req.Transaction = chi.URLParam(r, "transaction")

		resp, err := client.Execute(r.Context(), req)
		if err != nil {
			if resp != nil {
				// Business errors still carry the decoded records.
				ee, ok := err.(*model.ErrorEnvelope)
				if ok && ee.Code == model.ErrBusinessError {
					WriteJSON(w, http.StatusUnprocessableEntity, resp)
					return
				}
			}
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// miRequestFromQuery maps query parameters onto an MI request. Keys with a
// leading underscore steer the call; everything else is an input field.
func miRequestFromQuery(r *http.Request) *model.MIRequest {
	req := &model.MIRequest{Record: make(map[string]string)}
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		switch key {
		case "_maxrecs":
			if n, err := strconv.Atoi(value); err == nil {
				req.MaxReturnedRecords = n
			}
		case "_returncols":
			req.OutputFields = strings.Split(value, ",")
		case "_metadata":
			req.IncludeMetadata = value == "true"
		case "_typed":
			req.TypedOutput = value == "true"
		case "_includeempty":
			req.IncludeEmptyValues = value == "true"
		case "_cono":
			req.Company = value
		case "_divi":
			req.Division = value
		default:
			if !strings.HasPrefix(key, "_") {
				req.Record[key] = value
			}
		}
	}
	return req
}

func handleIonProxy(broker *ionapi.Broker, prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
		if err != nil {
			WriteError(w, model.NewBadRequestError("reading request body: "+err.Error()))
			return
		}

		target := strings.TrimPrefix(r.URL.Path, prefix)
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		req := &model.IonRequest{
			Method: r.Method,
			URL:    target,
			Source: r.Header.Get("x-infor-ionapi-source"),
			Body:   body,
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			req.Headers = map[string]string{"Content-Type": ct}
		}

		resp, err := broker.Execute(r.Context(), req)
		if err != nil {
			WriteError(w, err)
			return
		}

		for name, value := range resp.Headers {
			w.Header().Set(name, value)
		}
		if resp.IsRetry {
			w.Header().Set("X-Ion-Retried", "true")
		}
		w.WriteHeader(resp.Status)
		w.Write(resp.Body)
	}
}
