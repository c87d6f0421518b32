package generator

import (
	"strings"
)

// namePattern maps keywords found in a field name to a generator.
// Patterns are tried in order and the first one matching wins.
type namePattern struct {
	keywords []string
	method   string
	params   params
}

var namePatterns = []namePattern{
	{keywords: []string{"email", "mail"}, method: "email"},
	{keywords: []string{"phone", "tel", "mobile"}, method: "phone_number"},
	{keywords: []string{"first", "fname", "given"}, method: "first_name"},
	{keywords: []string{"last", "lname", "surname", "family"}, method: "last_name"},
	{keywords: []string{"name"}, method: "name"},
	{keywords: []string{"date", "birth", "created", "updated"}, method: "past_date"},
	{keywords: []string{"address", "street"}, method: "address"},
	{keywords: []string{"city"}, method: "city"},
	{keywords: []string{"state", "province"}, method: "state"},
	{keywords: []string{"country", "nation"}, method: "country"},
	{keywords: []string{"zip", "postal"}, method: "postcode"},
	{keywords: []string{"price", "cost", "amount", "salary"}, method: "price"},
	{keywords: []string{"active", "enabled", "valid", "is_"}, method: "boolean"},
	{keywords: []string{"id", "number", "num", "count"}, method: "random_int", params: params{"min": 1, "max": 100000}},
	{keywords: []string{"age", "year"}, method: "random_int", params: params{"min": 18, "max": 80}},
	{keywords: []string{"description", "comment", "note"}, method: "text"},
	{keywords: []string{"title", "subject"}, method: "sentence"},
	{keywords: []string{"company", "employer", "organization"}, method: "company"},
	{keywords: []string{"job", "position", "role"}, method: "job"},
}

const defaultMethod = "word"

// fromName guesses a generator from keywords in the field name, defaulting to a single word.
func (e *Engine) fromName(field string) Generator {
	lower := strings.ToLower(field)
	method, p := defaultMethod, params(nil)
	for _, np := range namePatterns {
		if containsAny(lower, np.keywords) {
			method, p = np.method, np.params
			break
		}
	}

	b := builtins[method]
	return func() (any, error) { return b.gen(e, p) }
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
