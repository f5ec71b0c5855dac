package designer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/xomicsdatascience/pscs-api/internal/catalog"
	"github.com/xomicsdatascience/pscs-api/internal/ir"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

// DefaultPathKey is the parameter input nodes read their file from.
const DefaultPathKey = "path"

// SaveKey is the parameter output nodes write their file to.
const SaveKey = "save"

// AssignInputs sets the key parameter (DefaultPathKey when empty) of each
// node named in inputs. Nodes are matched by id or designer id.
func AssignInputs(def *Definition, inputs map[string]string, key string) error {
	if key == "" {
		key = DefaultPathKey
	}

	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n, ok := def.Node(id)
		if !ok {
			return fmt.Errorf("assign input: %w %q", ErrUnknownNode, id)
		}
		if n.Params == nil {
			n.Params = make(map[string]any)
		}
		n.Params[key] = inputs[id]
	}
	return nil
}

// AssignOutputs places every output node's save file under dir. The current
// save value, or the type's default, is reduced to a safe file name first;
// its leading underscores are kept. When two output nodes would write the
// same file, the later one gets a numbered name such as result_0.json.
func AssignOutputs(def *Definition, reg *catalog.Registry, dir string) error {
	taken := make(map[string]bool)
	for _, n := range def.Nodes {
		nt, err := reg.Lookup(n.TypeName())
		if err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
		if nt.Kind != pipeline.KindOutput {
			continue
		}

		raw, ok := n.Params[SaveKey]
		if !ok {
			if p, declared := nt.Parameter(SaveKey); declared && p.Default != nil {
				raw = ir.Native(p.Default)
			}
		}
		name, ok := raw.(string)
		if !ok {
			return &ParameterInitializationError{NodeID: n.ID, Param: SaveKey, Err: fmt.Errorf("output file name must be a string, got %T", raw)}
		}

		lead := len(name) - len(strings.TrimLeft(name, "_"))
		if n.Params == nil {
			n.Params = make(map[string]any)
		}
		file := strings.Repeat("_", lead) + SecureFilename(name)
		ext := filepath.Ext(file)
		stem := catalog.FindUniqueName(taken, strings.TrimSuffix(file, ext))
		taken[stem] = true
		n.Params[SaveKey] = filepath.Join(dir, stem+ext)
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to a plain ASCII file name that cannot escape
// its directory. It may return "".
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= utf8.RuneSelf:
		case r == '/' || r == filepath.Separator:
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	name = strings.Join(strings.FieldsFunc(b.String(), unicode.IsSpace), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}
