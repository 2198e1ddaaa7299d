// Package fingerprint hashes a schema into a merkle tree: columns hash into
// their table, tables hash into the root. Equal schemas have equal roots, and
// two fingerprints can be compared table by table.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/cbergoon/merkletree"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/engine"
)

// ShortLen is the length of the fingerprint prefix used in file names.
const ShortLen = 12

// Hash is the fingerprint of a schema.
type Hash struct {
	Root   string                // root of the table-level merkle tree
	Tables map[string]*TableHash // per-table hashes for drill-down
}

// TableHash is the fingerprint of one table.
type TableHash struct {
	Name    string
	Hash    string
	Columns map[string]string // SQL column name -> hash
}

// Short returns the first ShortLen hex digits of the root.
func (h *Hash) Short() string {
	if len(h.Root) <= ShortLen {
		return h.Root
	}
	return h.Root[:ShortLen]
}

// tableContent implements merkletree.Content for table-level hashing.
type tableContent struct {
	name string
	hash string
}

func (t tableContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256([]byte(t.name + "=" + t.hash))
	return h[:], nil
}

func (t tableContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(tableContent)
	if !ok {
		return false, nil
	}
	return t.name == o.name && t.hash == o.hash, nil
}

// Compute fingerprints a schema. References are resolved first; a schema
// whose references cannot be resolved has no fingerprint.
func Compute(s *ast.Schema) (*Hash, error) {
	result := &Hash{Tables: make(map[string]*TableHash)}
	if s == nil || s.Len() == 0 {
		result.Root = emptyHash()
		return result, nil
	}
	if err := ast.ResolveReferences(s); err != nil {
		return nil, err
	}

	names := s.Names()
	slices.Sort(names)

	contents := make([]merkletree.Content, 0, len(names))
	for _, name := range names {
		th := tableHash(s.Table(name))
		result.Tables[name] = th
		contents = append(contents, tableContent{name: name, hash: th.Hash})
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, alerr.Wrap(alerr.EInternalError, err, "failed to build merkle tree")
	}
	result.Root = hex.EncodeToString(tree.MerkleRoot())
	return result, nil
}

func tableHash(t *ast.TableDef) *TableHash {
	th := &TableHash{Name: t.Name, Columns: make(map[string]string, len(t.Columns))}

	names := t.ColumnNames()
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		h := columnHash(t.Col(name))
		th.Columns[name] = h
		parts = append(parts, name+":"+h)
	}

	// declaration order is part of the table: it drives generated code
	th.Hash = hashString(fmt.Sprintf("table:%s|columns:[%s]|order:[%s]",
		t.Name, strings.Join(parts, ","), strings.Join(t.ColumnNames(), ",")))
	return th
}

func columnHash(c *ast.ColumnDef) string {
	data := fmt.Sprintf("key:%s|name:%s|type:%s|nullable:%v|unique:%v|pk:%v|default:%s",
		c.Key,
		c.Name,
		c.Type.Tag(),
		c.IsNullable(),
		c.Unique,
		c.PrimaryKey,
		engine.CanonicalDefault(c.Default, c.Type.Kind, ""),
	)
	if c.Ref != nil && c.Ref.Resolved() {
		data += fmt.Sprintf("|ref:%s|on_delete:%s|on_update:%s",
			c.Ref.String(), strings.ToUpper(c.Ref.OnDelete), strings.ToUpper(c.Ref.OnUpdate))
	}
	return hashString(data)
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func emptyHash() string {
	return hashString("empty_schema")
}

// -----------------------------------------------------------------------------
// Comparison
// -----------------------------------------------------------------------------

// Comparison lists the tables that differ between two fingerprints.
type Comparison struct {
	Match    bool
	Added    []string // only in cur
	Removed  []string // only in old
	Modified []string // in both with different hashes
}

// Compare reports which tables changed from old to cur.
func Compare(old, cur *Hash) Comparison {
	c := Comparison{Match: old.Root == cur.Root}
	if c.Match {
		return c
	}

	for name, th := range cur.Tables {
		prev, ok := old.Tables[name]
		switch {
		case !ok:
			c.Added = append(c.Added, name)
		case prev.Hash != th.Hash:
			c.Modified = append(c.Modified, name)
		}
	}
	for name := range old.Tables {
		if _, ok := cur.Tables[name]; !ok {
			c.Removed = append(c.Removed, name)
		}
	}

	slices.Sort(c.Added)
	slices.Sort(c.Removed)
	slices.Sort(c.Modified)
	return c
}
