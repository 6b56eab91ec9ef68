package channels

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/shaiso/Prospector/internal/domain"
)

// TemplateData — данные, доступные в шаблонах сообщений:
//
//	{{ .Listing.Title }}, {{ .Listing.Year }}, {{ .Lead.City }}, {{ .Touch.Step }}
type TemplateData struct {
	Lead    *domain.Lead
	Listing domain.Listing
	Touch   *domain.TouchRun
}

// NewTemplateData собирает данные шаблона для касания.
func NewTemplateData(lead *domain.Lead, touch *domain.TouchRun) *TemplateData {
	return &TemplateData{Lead: lead, Listing: lead.Listing, Touch: touch}
}

var templateFuncs = template.FuncMap{
	// default — значение по умолчанию для пустого аргумента: {{ default "there" .Listing.SellerName }}
	"default": func(def, val any) any {
		if isEmpty(val) {
			return def
		}
		return val
	},

	// coalesce — первое непустое значение.
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if !isEmpty(v) {
				return v
			}
		}
		return nil
	},

	// firstName — первое слово имени продавца.
	"firstName": func(s string) string {
		if f := strings.Fields(s); len(f) > 0 {
			return f[0]
		}
		return ""
	},

	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
	"trim":    strings.TrimSpace,
	"replace": strings.ReplaceAll,
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	}
	return false
}

func parse(tmpl string) (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	return t, nil
}

// Render рендерит строку с Go template выражениями. Строка без "{{" возвращается как есть.
func Render(tmpl string, data *TemplateData) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

// RenderPayload рендерит все строки payload, включая вложенные map и slice.
// Исходный payload не меняется.
func RenderPayload(payload map[string]any, data *TemplateData) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}
	rendered, err := renderValue(payload, data)
	if err != nil {
		return nil, err
	}
	return rendered.(map[string]any), nil
}

func renderValue(value any, data *TemplateData) (any, error) {
	switch v := value.(type) {
	case string:
		return Render(v, data)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := renderValue(val, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := renderValue(val, data)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		return value, nil
	}
}

// ValidatePayload проверяет, что все шаблоны в payload разбираются.
// Вызывается при записи в кампанию, чтобы ошибка всплыла до отправки.
func ValidatePayload(payload map[string]any) error {
	return walkStrings(payload, func(s string) error {
		if !strings.Contains(s, "{{") {
			return nil
		}
		_, err := parse(s)
		return err
	})
}

func walkStrings(value any, fn func(string) error) error {
	switch v := value.(type) {
	case string:
		return fn(v)
	case map[string]any:
		for key, val := range v {
			if err := walkStrings(val, fn); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	case []any:
		for _, val := range v {
			if err := walkStrings(val, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
