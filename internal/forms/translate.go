package forms

import (
	"context"
	"strings"
	"sync"

	"github.com/varnlund/gridlink/internal/observability"
	"github.com/varnlund/gridlink/model"
)

// translate wire parameter names.
const (
	paramTranslateLanguage  = "LANGUAGE"
	paramTranslateConstants = "CONSTANTS"
	commandValueTranslate   = "TRANSLATE"
)

// TranslationCache is the per-language constant cache. One instance is
// owned by one Form client; there is no ambient global state. Repeated
// lookups for the same file/key are coalesced into a single batch request
// and server replies are merged back into the cache.
type TranslationCache struct {
	metrics *observability.Metrics

	mu        sync.Mutex
	languages map[string]map[string]string
}

// NewTranslationCache creates an empty cache. metrics may be nil.
func NewTranslationCache(metrics *observability.Metrics) *TranslationCache {
	return &TranslationCache{
		metrics:   metrics,
		languages: make(map[string]map[string]string),
	}
}

// sendFunc dispatches one Form request; the client supplies its
// session-routed implementation.
type sendFunc func(ctx context.Context, req *model.FormRequest) (*model.FormResponse, error)

// Translate resolves every item of the batch. Items already cached are
// filled in without any server call; the misses are deduplicated into one
// batch request, and the reply's Text entries are matched back to every
// pending item sharing the same file and key. When every item is cached no
// request is issued at all.
func (tc *TranslationCache) Translate(ctx context.Context, req *model.TranslationRequest, send sendFunc) (*model.TranslationResponse, error) {
	if req == nil || len(req.Items) == 0 {
		return &model.TranslationResponse{Language: languageOf(req)}, nil
	}

	lang := languageOf(req)

	tc.mu.Lock()
	cache := tc.languages[lang]
	if cache == nil {
		cache = make(map[string]string)
		tc.languages[lang] = cache
	}
	var missing []*model.TranslationItem
	seen := make(map[string]bool)
	for _, item := range req.Items {
		key := constantKey(item.File, item.Key)
		if text, ok := cache[key]; ok {
			item.Text = text
			tc.metrics.RecordTranslationLookup(true)
			continue
		}
		tc.metrics.RecordTranslationLookup(false)
		if !seen[key] {
			seen[key] = true
			missing = append(missing, item)
		}
	}
	tc.mu.Unlock()

	if len(missing) == 0 {
		return &model.TranslationResponse{Language: lang, Items: req.Items}, nil
	}

	resp, err := send(ctx, &model.FormRequest{
		CommandType:  commandFunction,
		CommandValue: commandValueTranslate,
		Params: map[string]string{
			paramTranslateLanguage:  lang,
			paramTranslateConstants: encodeConstants(missing),
		},
		Resolve: true,
	})
	if err != nil {
		return nil, err
	}

	tc.merge(lang, req.Items, resp)

	return &model.TranslationResponse{Language: lang, Items: req.Items}, nil
}

// merge matches the reply's Text[@file,@key] entries back to every pending
// item with the same file and key (there can be more than one) and updates
// the cache.
func (tc *TranslationCache) merge(lang string, items []*model.TranslationItem, resp *model.FormResponse) {
	if resp == nil || resp.Document == nil {
		return
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	cache := tc.languages[lang]

	for _, te := range resp.Document.Select("Text") {
		file := te.Attr("file")
		key := te.Attr("key")
		if key == "" {
			continue
		}
		text := strings.TrimSpace(te.Text)
		cache[constantKey(file, key)] = text
		for _, item := range items {
			if item.Key == key && item.File == file {
				item.Text = text
			}
		}
	}
}

// encodeConstants joins the missing items as file,key pairs separated by
// semicolons, the batch format the translate function expects.
func encodeConstants(items []*model.TranslationItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.File+","+item.Key)
	}
	return strings.Join(parts, ";")
}

func constantKey(file, key string) string {
	return file + ":" + key
}

func languageOf(req *model.TranslationRequest) string {
	if req == nil || req.Language == "" {
		return "GB"
	}
	return req.Language
}
