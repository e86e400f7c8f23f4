package load

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Kind is the storage type of a declared column.
type Kind int

// Column kinds.
const (
	KindText Kind = iota
	KindInt
	KindFloat
)

// SQLType is the Postgres type used in generated DDL.
func (k Kind) SQLType() string {
	switch k {
	case KindInt:
		return "BIGINT"
	case KindFloat:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// Column is one declared table column.
type Column struct {
	Name string
	Kind Kind
}

// Table describes how one flat file maps onto one relational table.
type Table struct {
	Name    string
	Columns []Column
	// Rename maps flat-file header names to column names.
	Rename map[string]string
	// Key is the foreign/primary key column used for referential filtering.
	Key string
}

// KeyColumn is the identifier column shared by all three tables.
const KeyColumn = "leasecarId"

// The relational schema. Flat-file columns not listed here, such as the
// make and model echoed in the price and color files, are dropped.
var (
	DimVehicles = Table{
		Name: "dim_vehicles",
		Columns: []Column{
			{KeyColumn, KindText},
			{"make", KindText},
			{"model", KindText},
			{"year", KindInt},
			{"type", KindText},
			{"trimLevel", KindText},
			{"retailPrice", KindFloat},
			{"fuelType", KindText},
			{"batteryCapacity", KindFloat},
			{"range", KindFloat},
			{"enginePowerHP", KindInt},
			{"maxTorque", KindInt},
			{"acceleration", KindFloat},
			{"topSpeed", KindInt},
			{"length", KindInt},
			{"height", KindInt},
			{"weight", KindInt},
			{"seats", KindInt},
			{"luggageSpace", KindInt},
			{"standardFeatures_list", KindText},
		},
		Rename: map[string]string{"id": KeyColumn},
		Key:    KeyColumn,
	}
	FactPrice = Table{
		Name: "fact_price",
		Columns: []Column{
			{KeyColumn, KindText},
			{"duration", KindInt},
			{"mileage", KindInt},
			{"pricePerMonth", KindFloat},
		},
		Rename: map[string]string{"id": KeyColumn},
		Key:    KeyColumn,
	}
	DimColor = Table{
		Name: "dim_color",
		Columns: []Column{
			{KeyColumn, KindText},
			{"colorName", KindText},
			{"colorCode", KindText},
			{"colorPrice", KindFloat},
			{"primaryRgbCode", KindText},
		},
		Rename: map[string]string{"id": KeyColumn},
		Key:    KeyColumn,
	}
)

// Tables lists the schema in load order.
func Tables() []Table {
	return []Table{DimVehicles, FactPrice, DimColor}
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// InsertSQL builds a multi-row INSERT for rows records with positional
// parameters. Every identifier is quoted, so reserved words like range
// are safe.
func (t Table) InsertSQL(rows int) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quote(c.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", quote(t.Name), strings.Join(cols, ", "))
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range t.Columns {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// CreateTableSQL is the idempotent DDL for t. The key column is indexed
// but not unique: loads append, so re-running a load duplicates rows.
func (t Table) CreateTableSQL() []string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		def := quote(c.Name) + " " + c.Kind.SQLType()
		if c.Name == t.Key {
			def += " NOT NULL"
		}
		defs[i] = def
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(t.Name), strings.Join(defs, ", ")),
	}
	if t.Key != "" {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quote(t.Name+"_"+strings.ToLower(t.Key)+"_idx"), quote(t.Name), quote(t.Key)))
	}
	return stmts
}

// SelectKeysSQL reads every key currently stored in t.
func (t Table) SelectKeysSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s", quote(t.Key), quote(t.Name))
}
