package persistence

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// arg renders a value as a text parameter; Postgres parses it into the
// column type. Unset and null both bind SQL NULL.
func arg(v entity.Value) any {
	if !v.IsSet() {
		return nil
	}
	return v.String()
}

type statement struct {
	sql  string
	args []any
}

// keyPredicate scopes a statement to one record of one tenant, numbering
// its placeholders from start.
func keyPredicate(schema entity.Schema, tenantID uuid.UUID, key entity.Key, start int) (string, []any) {
	clauses := []string{
		fmt.Sprintf("%s = $%d", ident(entity.TenantIDField), start),
		fmt.Sprintf("%s = $%d", ident(schema.KeyField), start+1),
	}
	args := []any{tenantID.String(), key.ID}
	if schema.Localized {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", ident(entity.LocaleField), start+2))
		args = append(args, key.Locale)
	}
	return strings.Join(clauses, " AND "), args
}

func buildList(schema entity.Schema, tenantID uuid.UUID) statement {
	order := ident(schema.KeyField)
	if schema.Localized {
		order += ", " + ident(entity.LocaleField)
	}
	return statement{
		sql: fmt.Sprintf("SELECT * FROM %s WHERE %s = $1 ORDER BY %s",
			ident(schema.Table), ident(entity.TenantIDField), order),
		args: []any{tenantID.String()},
	}
}

// buildInsert omits unset fields so column defaults apply.
func buildInsert(schema entity.Schema, tenantID uuid.UUID, rec entity.Record) statement {
	cols := []string{ident(entity.TenantIDField), ident(schema.KeyField)}
	args := []any{tenantID.String(), rec.Key.ID}
	if schema.Localized {
		cols = append(cols, ident(entity.LocaleField))
		args = append(args, rec.Key.Locale)
	}
	if schema.Canonical {
		cols = append(cols, ident(entity.IsCanonicalField))
		args = append(args, rec.IsCanonical)
	}
	for _, f := range schema.Fields {
		v := rec.Get(f.Name)
		if v.IsUnset() {
			continue
		}
		cols = append(cols, ident(f.Name))
		args = append(args, arg(v))
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return statement{
		sql: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			ident(schema.Table), strings.Join(cols, ", "), strings.Join(placeholders, ", ")),
		args: args,
	}
}

// buildUpdate sets only the changed fields, in name order.
func buildUpdate(schema entity.Schema, tenantID uuid.UUID, key entity.Key, changed map[string]entity.Value) (statement, error) {
	if len(changed) == 0 {
		return statement{}, fmt.Errorf("update %s %s: no changed fields", schema.Type, key)
	}
	names := make([]string, 0, len(changed))
	for name := range changed {
		if name != entity.IsCanonicalField && !schema.HasField(name) {
			return statement{}, fmt.Errorf("update %s: unknown field %q", schema.Type, name)
		}
		if name == schema.KeyField || name == entity.LocaleField {
			return statement{}, fmt.Errorf("update %s: identity field %q cannot change", schema.Type, name)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+3)
	for i, name := range names {
		sets[i] = fmt.Sprintf("%s = $%d", ident(name), i+1)
		if name == entity.IsCanonicalField {
			args = append(args, changed[name].String() == "true")
			continue
		}
		args = append(args, arg(changed[name]))
	}
	where, whereArgs := keyPredicate(schema, tenantID, key, len(names)+1)
	return statement{
		sql:  fmt.Sprintf("UPDATE %s SET %s WHERE %s", ident(schema.Table), strings.Join(sets, ", "), where),
		args: append(args, whereArgs...),
	}, nil
}

func buildDelete(schema entity.Schema, tenantID uuid.UUID, key entity.Key) statement {
	where, args := keyPredicate(schema, tenantID, key, 1)
	return statement{
		sql:  fmt.Sprintf("DELETE FROM %s WHERE %s", ident(schema.Table), where),
		args: args,
	}
}
