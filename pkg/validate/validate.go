// Package validate runs struct-tag validation on decoded request bodies.
//
// Rules are comma-separated in the `validate` tag:
//
//	required            field must not be zero/empty
//	nullable            if empty, skip the remaining rules
//	email               valid email address
//	url                 absolute http(s) URL
//	date                YYYY-MM-DD or RFC3339
//	alpha_dash          letters, digits, hyphens, underscores
//	numeric             any number (strings are parsed)
//	min=N / max=N       string length, slice length or numeric value
//	size=N              exact string length
//	gt=N gte=N lt=N lte=N
//	between=a,b         inclusive numeric range (or string length)
//	in=a,b,c            one of the listed values
//	not_in=a,b,c        none of the listed values
//	confirmed           equals the sibling <field>_confirmation
//	currency            ISO 4217 code (three upper-case letters)
//	rut                 Chilean RUT with a valid check digit
//	dive                validate each element of a slice of structs
//
// Numeric rules understand ints, floats and decimal.Decimal. Errors are keyed
// by JSON name; nested elements use dotted paths ("items.0.quantity").
package validate

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// Struct validates every tagged field of v. An empty map means v is valid.
func Struct(v interface{}) map[string]string {
	errs := make(map[string]string)
	walk(reflect.ValueOf(v), "", errs)
	return errs
}

// HasErrors reports whether errs is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func walk(rv reflect.Value, prefix string, errs map[string]string) {
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}

		name := prefix + jsonFieldName(field)
		value := rv.Field(i)
		rules := splitRules(tag)

		if hasRule(rules, "nullable") && isEmpty(value) {
			continue
		}

		failed := false
		for _, rule := range rules {
			if rule == "nullable" || rule == "dive" {
				continue
			}
			if msg := applyRule(rule, name, indirect(value), rv); msg != "" {
				errs[name] = msg
				failed = true
				break
			}
		}

		if !failed && hasRule(rules, "dive") {
			elems := indirect(value)
			if elems.Kind() == reflect.Slice || elems.Kind() == reflect.Array {
				for j := 0; j < elems.Len(); j++ {
					walk(elems.Index(j), fmt.Sprintf("%s.%d.", name, j), errs)
				}
			}
		}
	}
}

func applyRule(rule, field string, v reflect.Value, parent reflect.Value) string {
	key, param, _ := strings.Cut(rule, "=")
	raw := display(v)

	switch key {
	case "required":
		if isEmpty(v) {
			return fmt.Sprintf("The %s field is required.", field)
		}

	case "email":
		if !emailRE.MatchString(raw) {
			return fmt.Sprintf("The %s must be a valid email address.", field)
		}

	case "url":
		u, err := url.ParseRequestURI(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Sprintf("The %s must be a valid URL.", field)
		}

	case "date":
		if _, err := parseDate(raw); err != nil {
			return fmt.Sprintf("The %s is not a valid date.", field)
		}

	case "alpha_dash":
		if !alphaDashRE.MatchString(raw) {
			return fmt.Sprintf("The %s may only contain letters, numbers, dashes and underscores.", field)
		}

	case "numeric":
		if _, ok := number(v); !ok {
			return fmt.Sprintf("The %s must be a number.", field)
		}

	case "currency":
		if !currencyRE.MatchString(raw) {
			return fmt.Sprintf("The %s must be a three-letter currency code.", field)
		}

	case "rut":
		if !ValidRUT(raw) {
			return fmt.Sprintf("The %s is not a valid RUT.", field)
		}

	case "min", "max":
		limit := mustParse(param)
		n, isNum := measure(v)
		if key == "min" && n.LessThan(limit) {
			return boundMessage(field, "at least", param, isNum)
		}
		if key == "max" && n.GreaterThan(limit) {
			return boundMessage(field, "at most", param, isNum)
		}

	case "size":
		if want, _ := strconv.Atoi(param); len([]rune(raw)) != want {
			return fmt.Sprintf("The %s must be exactly %s characters.", field, param)
		}

	case "gt", "gte", "lt", "lte":
		n, ok := number(v)
		if !ok {
			return fmt.Sprintf("The %s must be a number.", field)
		}
		limit := mustParse(param)
		var pass bool
		var word string
		switch key {
		case "gt":
			pass, word = n.GreaterThan(limit), "greater than"
		case "gte":
			pass, word = n.GreaterThanOrEqual(limit), "greater than or equal to"
		case "lt":
			pass, word = n.LessThan(limit), "less than"
		case "lte":
			pass, word = n.LessThanOrEqual(limit), "less than or equal to"
		}
		if !pass {
			return fmt.Sprintf("The %s must be %s %s.", field, word, param)
		}

	case "between":
		lo, hi, _ := strings.Cut(param, ",")
		n, _ := measure(v)
		if n.LessThan(mustParse(lo)) || n.GreaterThan(mustParse(hi)) {
			return fmt.Sprintf("The %s must be between %s and %s.", field, lo, hi)
		}

	case "in", "not_in":
		found := false
		for _, opt := range strings.Split(param, ",") {
			if strings.TrimSpace(opt) == raw {
				found = true
				break
			}
		}
		if key == "in" && !found {
			return fmt.Sprintf("The selected %s is invalid.", field)
		}
		if key == "not_in" && found {
			return fmt.Sprintf("The selected %s is invalid.", field)
		}

	case "confirmed":
		other := siblingByJSON(parent, field+"_confirmation")
		if other == nil || display(indirect(*other)) != raw {
			return fmt.Sprintf("The %s confirmation does not match.", field)
		}
	}

	return ""
}

// ValidRUT checks a Chilean RUT such as "12.345.678-5" with the modulo 11
// check digit.
func ValidRUT(s string) bool {
	s = strings.ToUpper(strings.NewReplacer(".", "", " ", "").Replace(s))
	body, dv, ok := strings.Cut(s, "-")
	if !ok {
		if len(s) < 2 {
			return false
		}
		body, dv = s[:len(s)-1], s[len(s)-1:]
	}
	if len(dv) != 1 || body == "" || !digitsRE.MatchString(body) {
		return false
	}

	sum, mul := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * mul
		mul++
		if mul > 7 {
			mul = 2
		}
	}
	want := 11 - sum%11
	switch want {
	case 11:
		return dv == "0"
	case 10:
		return dv == "K"
	default:
		return dv == strconv.Itoa(want)
	}
}

var (
	emailRE     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	alphaDashRE = regexp.MustCompile(`^[\p{L}\p{N}_\-]+$`)
	currencyRE  = regexp.MustCompile(`^[A-Z]{3}$`)
	digitsRE    = regexp.MustCompile(`^\d+$`)
)

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as date", s)
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func display(v reflect.Value) string {
	if !v.IsValid() || (v.Kind() == reflect.Ptr && v.IsNil()) {
		return ""
	}
	return fmt.Sprintf("%v", v.Interface())
}

func isEmpty(v reflect.Value) bool {
	if v.Type() == decimalType {
		return v.Interface().(decimal.Decimal).IsZero()
	}
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	}
	return false
}

// number reads v as a decimal when it is numeric or a numeric string.
func number(v reflect.Value) (decimal.Decimal, bool) {
	if !v.IsValid() {
		return decimal.Zero, false
	}
	if v.Type() == decimalType {
		return v.Interface().(decimal.Decimal), true
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromInt(int64(v.Uint())), true
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(v.Float()), true
	case reflect.String:
		d, err := decimal.NewFromString(strings.TrimSpace(v.String()))
		return d, err == nil
	}
	return decimal.Zero, false
}

// measure returns the value compared by min/max/between: numbers compare
// by value, everything else by length.
func measure(v reflect.Value) (decimal.Decimal, bool) {
	switch v.Kind() {
	case reflect.String:
		return decimal.NewFromInt(int64(len([]rune(v.String())))), false
	case reflect.Slice, reflect.Map, reflect.Array:
		return decimal.NewFromInt(int64(v.Len())), false
	}
	n, _ := number(v)
	return n, true
}

func boundMessage(field, word, param string, isNum bool) string {
	if isNum {
		return fmt.Sprintf("The %s must be %s %s.", field, word, param)
	}
	return fmt.Sprintf("The %s must be %s %s characters.", field, word, param)
}

func mustParse(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(strings.TrimSpace(s))
	return d
}

func jsonFieldName(f reflect.StructField) string {
	name := f.Tag.Get("json")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name)
	}
	if idx := strings.Index(name, ","); idx != -1 {
		name = name[:idx]
	}
	return name
}

var bareRules = map[string]bool{
	"required": true, "nullable": true, "email": true, "url": true, "date": true,
	"alpha_dash": true, "numeric": true, "confirmed": true, "currency": true,
	"rut": true, "dive": true,
}

// splitRules splits a tag on commas, keeping the values of in=, not_in= and
// between= together: "required,in=a,b,max=3" -> [required in=a,b max=3].
func splitRules(tag string) []string {
	var rules []string
	multi := false
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, _, hasParam := strings.Cut(part, "=")
		if multi && !hasParam && !bareRules[key] {
			rules[len(rules)-1] += "," + part
			continue
		}
		rules = append(rules, part)
		multi = key == "in" || key == "not_in" || key == "between"
	}
	return rules
}

func hasRule(rules []string, target string) bool {
	for _, r := range rules {
		if r == target {
			return true
		}
	}
	return false
}

func siblingByJSON(parent reflect.Value, name string) *reflect.Value {
	// parent field names are unprefixed; strip any dotted path.
	if i := strings.LastIndex(name, "."); i != -1 {
		name = name[i+1:]
	}
	rt := parent.Type()
	for i := 0; i < rt.NumField(); i++ {
		if jsonFieldName(rt.Field(i)) == name {
			v := parent.Field(i)
			return &v
		}
	}
	return nil
}
