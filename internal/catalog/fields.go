package catalog

import (
	"fmt"
	"strings"
)

// Field is a search field declared by a metadata type.
type Field struct {
	Name       string
	Type       string
	Offset     []string
	MinOffsets [][]string
	MaxOffsets [][]string
}

// IsRange reports whether the field has lower and upper bounds.
func (f Field) IsRange() bool {
	return strings.HasSuffix(f.Type, "-range") || len(f.MinOffsets) > 0
}

// baseType is the scalar type of the field (or of each range bound).
func (f Field) baseType() string {
	t := strings.TrimSuffix(f.Type, "-range")
	if t == "" {
		return "string"
	}

	return t
}

// Expr returns the SQL expression for a scalar field.
func (f Field) Expr(doc string) string {
	return castValue(f.baseType(), TextAt(doc, f.Offset))
}

// LowerExpr returns the SQL expression for the lower bound of a range field.
func (f Field) LowerExpr(doc string) string {
	return f.boundExpr(doc, f.MinOffsets, "least")
}

// UpperExpr returns the SQL expression for the upper bound of a range field.
func (f Field) UpperExpr(doc string) string {
	return f.boundExpr(doc, f.MaxOffsets, "greatest")
}

func (f Field) boundExpr(doc string, offsets [][]string, combine string) string {
	if len(offsets) == 0 {
		return f.Expr(doc)
	}

	parts := make([]string, len(offsets))
	for i, o := range offsets {
		parts[i] = castValue(f.baseType(), TextAt(doc, o))
	}

	if len(parts) == 1 {
		return parts[0]
	}

	return combine + "(" + strings.Join(parts, ", ") + ")"
}

// Lower returns the lower bound of a range field from a decoded document.
func (f Field) Lower(d Doc) (float64, bool) {
	return f.bound(d, f.MinOffsets, func(a, b float64) bool { return a < b })
}

// Upper returns the upper bound of a range field from a decoded document.
func (f Field) Upper(d Doc) (float64, bool) {
	return f.bound(d, f.MaxOffsets, func(a, b float64) bool { return a > b })
}

func (f Field) bound(d Doc, offsets [][]string, better func(a, b float64) bool) (float64, bool) {
	if len(offsets) == 0 {
		return d.Float(f.Offset)
	}

	var (
		out   float64
		found bool
	)

	for _, o := range offsets {
		v, ok := d.Float(o)
		if !ok {
			continue
		}

		if !found || better(v, out) {
			out, found = v, true
		}
	}

	return out, found
}

func castValue(typ, expr string) string {
	switch typ {
	case "numeric":
		return expr + "::numeric"
	case "double", "float":
		return expr + "::double precision"
	case "integer":
		return expr + "::integer"
	case "datetime":
		return "agdc.common_timestamp(" + expr + ")"
	default:
		return expr
	}
}

// TextAt returns SQL extracting the text value at offset from a jsonb document.
func TextAt(doc string, offset []string) string {
	return fmt.Sprintf("(%s #>> %s)", doc, pathLiteral(offset))
}

// JSONAt returns SQL extracting the jsonb value at offset.
func JSONAt(doc string, offset []string) string {
	return fmt.Sprintf("(%s #> %s)", doc, pathLiteral(offset))
}

// pathLiteral renders offset as a quoted postgres text[] literal.
func pathLiteral(offset []string) string {
	parts := make([]string, len(offset))

	for i, p := range offset {
		p = strings.ReplaceAll(p, `\`, `\\`)
		p = strings.ReplaceAll(p, `"`, `\"`)
		parts[i] = `"` + p + `"`
	}

	lit := "{" + strings.Join(parts, ",") + "}"

	return "'" + strings.ReplaceAll(lit, "'", "''") + "'"
}
