package generator

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Date is a calendar date, rendered without a time of day.
type Date struct {
	time.Time
}

// String returns the ISO-8601 date.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// builtin is an entry of the method table: the parameters it understands and its generator.
// gen receives nil params for the unparameterized call.
type builtin struct {
	accepts []string
	gen     func(e *Engine, p params) (any, error)
}

var (
	intParams     = []string{"min", "max", "step"}
	decimalParams = []string{"left_digits", "right_digits", "positive", "min_value", "max_value"}
	rangeParams   = []string{"start_date", "end_date"}
)

func plain[T any](f func(e *Engine) T) builtin {
	return builtin{gen: func(e *Engine, _ params) (any, error) { return f(e), nil }}
}

func dateBetween(start, end string) builtin {
	return builtin{accepts: rangeParams, gen: func(e *Engine, p params) (any, error) {
		t, err := e.between(p, start, end)
		if err != nil {
			return nil, err
		}
		return Date{t}, nil
	}}
}

func intRange(lo, hi int) builtin {
	return builtin{accepts: intParams, gen: func(e *Engine, p params) (any, error) {
		return e.intRange(p, lo, hi)
	}}
}

var departments = []any{"Sales", "Marketing", "Engineering", "HR", "Finance", "Operations"}

var builtins = map[string]builtin{
	// Names
	"name":       plain(func(e *Engine) string { return e.faker.Name() }),
	"full_name":  plain(func(e *Engine) string { return e.faker.Name() }),
	"first_name": plain(func(e *Engine) string { return e.faker.FirstName() }),
	"last_name":  plain(func(e *Engine) string { return e.faker.LastName() }),
	"username":   plain(func(e *Engine) string { return e.faker.Username() }),
	"user_name":  plain(func(e *Engine) string { return e.faker.Username() }),

	// Contact
	"email":         plain(func(e *Engine) string { return e.faker.Email() }),
	"free_email":    plain(func(e *Engine) string { return e.freeEmail() }),
	"company_email": plain(func(e *Engine) string { return strings.ToLower(e.faker.Username()) + "@" + e.faker.DomainName() }),
	"phone_number":  plain(func(e *Engine) string { return e.faker.Phone() }),
	"phone":         plain(func(e *Engine) string { return e.faker.Phone() }),

	// Dates
	"date":                dateBetween("1970-01-01", "today"),
	"past_date":           dateBetween("-2y", "today"),
	"future_date":         dateBetween("today", "+2y"),
	"date_between":        dateBetween("-1y", "+1y"),
	"birth_date":          dateBetween("-80y", "-18y"),
	"date_this_year":      {accepts: nil, gen: func(e *Engine, _ params) (any, error) { return e.sinceStartOf(yearStart) }},
	"date_this_decade":    {accepts: nil, gen: func(e *Engine, _ params) (any, error) { return e.sinceStartOf(decadeStart) }},
	"datetime":            {accepts: rangeParams, gen: func(e *Engine, p params) (any, error) { return e.between(p, "1970-01-01", "now") }},
	"date_time":           {accepts: rangeParams, gen: func(e *Engine, p params) (any, error) { return e.between(p, "1970-01-01", "now") }},
	"date_time_between":   {accepts: rangeParams, gen: func(e *Engine, p params) (any, error) { return e.between(p, "-30y", "now") }},
	"date_time_this_year": {accepts: nil, gen: func(e *Engine, _ params) (any, error) { return e.dateTimeThisYear() }},
	"date_of_birth": {accepts: []string{"minimum_age", "maximum_age"}, gen: func(e *Engine, p params) (any, error) {
		return e.dateOfBirth(p)
	}},
	"time": plain(func(e *Engine) string { return e.faker.Date().Format(time.TimeOnly) }),

	// Numbers
	"random_int":    intRange(1, 1000),
	"random_number": intRange(1, 10000),
	"pyint":         intRange(0, 9999),
	"float":         {accepts: decimalParams, gen: func(e *Engine, p params) (any, error) { return e.float(p, decimalSpec{left: 3, right: 2, positive: true}) }},
	"pyfloat":       {accepts: decimalParams, gen: func(e *Engine, p params) (any, error) { return e.float(p, decimalSpec{left: 3, right: 2, positive: true}) }},
	"price":         {accepts: decimalParams, gen: func(e *Engine, p params) (any, error) { return e.float(p, decimalSpec{left: 4, right: 2, positive: true}) }},
	"pydecimal": {accepts: decimalParams, gen: func(e *Engine, p params) (any, error) {
		return e.decimal(p, decimalSpec{left: 3, right: 2, positive: true})
	}},
	"currency": {accepts: decimalParams, gen: func(e *Engine, p params) (any, error) {
		d, err := e.decimal(p, decimalSpec{left: 3, right: 2, positive: true})
		if err != nil {
			return nil, err
		}
		return "$" + d.Text('f'), nil
	}},

	// Addresses
	"address":        plain(func(e *Engine) string { return e.faker.Address().Address }),
	"street_address": plain(func(e *Engine) string { return e.faker.Street() }),
	"city":           plain(func(e *Engine) string { return e.faker.City() }),
	"state":          plain(func(e *Engine) string { return e.faker.State() }),
	"country":        plain(func(e *Engine) string { return e.faker.Country() }),
	"postal_code":    plain(func(e *Engine) string { return e.faker.Zip() }),
	"zipcode":        plain(func(e *Engine) string { return e.faker.Zip() }),
	"postcode":       plain(func(e *Engine) string { return e.faker.Zip() }),

	// Text
	"text": {accepts: []string{"max_nb_chars"}, gen: func(e *Engine, p params) (any, error) { return e.text(p) }},
	"sentence": {accepts: []string{"nb_words"}, gen: func(e *Engine, p params) (any, error) {
		n, err := p.int("nb_words", 6)
		if err != nil || n < 1 {
			return nil, paramError(err, "nb_words", n)
		}
		return e.faker.LoremIpsumSentence(n), nil
	}},
	"paragraph": {accepts: []string{"nb_sentences"}, gen: func(e *Engine, p params) (any, error) {
		n, err := p.int("nb_sentences", 3)
		if err != nil || n < 1 {
			return nil, paramError(err, "nb_sentences", n)
		}
		return e.faker.LoremIpsumParagraph(1, n, 8, " "), nil
	}},
	"word": plain(func(e *Engine) string { return e.faker.LoremIpsumWord() }),
	"words": {accepts: []string{"nb"}, gen: func(e *Engine, p params) (any, error) {
		n, err := p.int("nb", e.faker.Number(2, 5))
		if err != nil || n < 1 {
			return nil, paramError(err, "nb", n)
		}
		words := make([]string, 0, n)
		for range n {
			words = append(words, e.faker.LoremIpsumWord())
		}
		return strings.Join(words, " "), nil
	}},
	"catch_phrase": plain(func(e *Engine) string { return e.faker.HackerPhrase() }),
	"bs":           plain(func(e *Engine) string { return e.faker.BS() }),

	// Company
	"company":        plain(func(e *Engine) string { return e.faker.Company() }),
	"job":            plain(func(e *Engine) string { return e.faker.JobTitle() }),
	"company_suffix": plain(func(e *Engine) string { return e.faker.CompanySuffix() }),
	"department":     {gen: func(e *Engine, _ params) (any, error) { return e.choice(departments) }},

	// Internet
	"url":         plain(func(e *Engine) string { return e.faker.URL() }),
	"domain_name": plain(func(e *Engine) string { return e.faker.DomainName() }),
	"ipv4":        plain(func(e *Engine) string { return e.faker.IPv4Address() }),
	"mac_address": plain(func(e *Engine) string { return e.faker.MacAddress() }),

	// Identifiers
	"uuid4":              plain(func(e *Engine) string { return e.faker.UUID() }),
	"uuid":               plain(func(e *Engine) string { return e.faker.UUID() }),
	"ssn":                plain(func(e *Engine) string { return e.faker.SSN() }),
	"ein":                plain(func(e *Engine) string { return e.faker.Numerify("##-#######") }),
	"credit_card_number": plain(func(e *Engine) string { return e.faker.CreditCardNumber(nil) }),
	"iban":               plain(func(e *Engine) string { return "GB" + e.faker.Numerify("##") + e.bban() }),
	"bban":               plain(func(e *Engine) string { return e.bban() }),

	// Booleans
	"boolean": {accepts: []string{"chance_of_getting_true"}, gen: func(e *Engine, p params) (any, error) { return e.boolean(p) }},
	"pybool":  {accepts: []string{"chance_of_getting_true"}, gen: func(e *Engine, p params) (any, error) { return e.boolean(p) }},

	// Colors
	"color_name": plain(func(e *Engine) string { return e.faker.Color() }),
	"hex_color":  plain(func(e *Engine) string { return e.faker.HexColor() }),
	"rgb_color": plain(func(e *Engine) string {
		c := e.faker.RGBColor()
		return fmt.Sprintf("%d,%d,%d", c[0], c[1], c[2])
	}),

	// Patterns and choices
	"random_element": {accepts: []string{"elements"}, gen: func(e *Engine, p params) (any, error) {
		elements, err := p.list("elements", []any{"a", "b", "c"})
		if err != nil {
			return nil, err
		}
		return e.choice(elements)
	}},
	"numerify": pattern("###", func(e *Engine, s string) string { return e.faker.Numerify(s) }),
	"lexify":   pattern("????", func(e *Engine, s string) string { return e.faker.Lexify(s) }),
	"bothify":  pattern("## ??", func(e *Engine, s string) string { return e.faker.Lexify(e.faker.Numerify(s)) }),
}

func pattern(def string, f func(e *Engine, s string) string) builtin {
	return builtin{accepts: []string{"text"}, gen: func(e *Engine, p params) (any, error) {
		s, err := p.string("text", def)
		if err != nil {
			return nil, err
		}
		return f(e, s), nil
	}}
}

func paramError(err error, key string, v int) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s=%d must be positive", errParamType, key, v)
}

func (e *Engine) intRange(p params, defMin, defMax int) (int, error) {
	lo, err := p.int("min", defMin)
	if err != nil {
		return 0, err
	}
	hi, err := p.int("max", defMax)
	if err != nil {
		return 0, err
	}
	step, err := p.int("step", 1)
	if err != nil {
		return 0, err
	}
	if lo > hi || step < 1 {
		return 0, fmt.Errorf("%w: empty range [%d, %d] step %d", errParamType, lo, hi, step)
	}
	return lo + step*e.faker.Number(0, (hi-lo)/step), nil
}

type decimalSpec struct {
	left, right int
	positive    bool
}

// maxDigits keeps coefficients within the exact range of an int64 and a float64.
const maxDigits = 15

func (e *Engine) decimal(p params, def decimalSpec) (*apd.Decimal, error) {
	left, err := p.int("left_digits", def.left)
	if err != nil {
		return nil, err
	}
	right, err := p.int("right_digits", def.right)
	if err != nil {
		return nil, err
	}
	positive, err := p.bool("positive", def.positive)
	if err != nil {
		return nil, err
	}
	minValue, err := p.optFloat("min_value")
	if err != nil {
		return nil, err
	}
	maxValue, err := p.optFloat("max_value")
	if err != nil {
		return nil, err
	}

	if left < 0 || right < 0 || left+right > maxDigits {
		return nil, fmt.Errorf("%w: unsupported precision %d.%d", errParamType, left, right)
	}

	scale := math.Pow10(right)
	bound := math.Pow10(left)*scale - 1
	lo, hi := -bound, bound
	if positive {
		lo = 1
	}
	if minValue != nil {
		lo = math.Max(lo, math.Ceil(*minValue*scale))
	}
	if maxValue != nil {
		hi = math.Min(hi, math.Floor(*maxValue*scale))
	}
	if lo > hi {
		return nil, fmt.Errorf("%w: empty decimal range", errParamType)
	}

	coeff := e.faker.Number(int(lo), int(hi))
	return apd.New(int64(coeff), -int32(right)), nil
}

func (e *Engine) float(p params, def decimalSpec) (float64, error) {
	d, err := e.decimal(p, def)
	if err != nil {
		return 0, err
	}
	return d.Float64()
}

// between draws an instant between the start_date and end_date parameters.
func (e *Engine) between(p params, defStart, defEnd string) (time.Time, error) {
	now := e.now()
	start, err := p.date("start_date", mustDate(defStart, now), now)
	if err != nil {
		return time.Time{}, err
	}
	end, err := p.date("end_date", mustDate(defEnd, now), now)
	if err != nil {
		return time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, fmt.Errorf("%w: end date %s is before start date %s", errParamType, end, start)
	}
	if end.Equal(start) {
		return start, nil
	}
	return e.faker.DateRange(start, end).In(now.Location()).Truncate(time.Second), nil
}

func (e *Engine) dateOfBirth(p params) (Date, error) {
	minAge, err := p.int("minimum_age", 18)
	if err != nil {
		return Date{}, err
	}
	maxAge, err := p.int("maximum_age", 80)
	if err != nil {
		return Date{}, err
	}
	if minAge < 0 || maxAge < minAge {
		return Date{}, fmt.Errorf("%w: invalid age range [%d, %d]", errParamType, minAge, maxAge)
	}

	now := e.now()
	t := e.faker.DateRange(now.AddDate(-maxAge-1, 0, 1), now.AddDate(-minAge, 0, 0))
	return Date{t.In(now.Location())}, nil
}

func yearStart(now time.Time) time.Time {
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
}

func decadeStart(now time.Time) time.Time {
	return time.Date(now.Year()-now.Year()%10, time.January, 1, 0, 0, 0, 0, now.Location())
}

func (e *Engine) sinceStartOf(start func(time.Time) time.Time) (Date, error) {
	now := e.now()
	return Date{e.faker.DateRange(start(now), now).In(now.Location())}, nil
}

func (e *Engine) dateTimeThisYear() (time.Time, error) {
	now := e.now()
	return e.faker.DateRange(yearStart(now), now).In(now.Location()).Truncate(time.Second), nil
}

func (e *Engine) text(p params) (string, error) {
	maxChars, err := p.int("max_nb_chars", 200)
	if err != nil {
		return "", err
	}
	if maxChars < 5 {
		return "", fmt.Errorf("%w: max_nb_chars=%d must be at least 5", errParamType, maxChars)
	}

	// Roughly 60 characters per sentence, so a random number of sentences fills the budget.
	sentences := max(1, e.faker.Number(1, maxChars/60+1))
	return truncateText(e.faker.LoremIpsumParagraph(1, sentences, 8, " "), maxChars), nil
}

// truncateText cuts s to at most n bytes on a word boundary, ending with a period.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndex(s[:n-1], " ")
	if cut <= 0 {
		return s[:n-1] + "."
	}
	return strings.TrimRight(s[:cut], ".,;") + "."
}

func (e *Engine) boolean(p params) (bool, error) {
	chance, err := p.int("chance_of_getting_true", 50)
	if err != nil {
		return false, err
	}
	if chance < 0 || chance > 100 {
		return false, fmt.Errorf("%w: chance_of_getting_true=%d out of [0, 100]", errParamType, chance)
	}
	return e.faker.Number(1, 100) <= chance, nil
}

var freeEmailDomains = []string{"gmail.com", "yahoo.com", "hotmail.com", "outlook.com"}

func (e *Engine) freeEmail() string {
	return strings.ToLower(e.faker.Username()) + "@" + freeEmailDomains[e.faker.Number(0, len(freeEmailDomains)-1)]
}

func (e *Engine) bban() string {
	return strings.ToUpper(e.faker.Lexify("????")) + e.faker.Numerify("##############")
}

func mustDate(s string, now time.Time) time.Time {
	t, err := parseDate(s, now)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in date %q: %v", s, err))
	}
	return t
}
