package designer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// designerFile is the pipeline export of the web designer.
type designerFile struct {
	Nodes []designerNode `json:"nodes"`
}

type designerNode struct {
	NodeID        string         `json:"nodeId"`
	ProcName      string         `json:"procName"`
	Module        string         `json:"module"`
	ParamsValues  map[string]any `json:"paramsValues"`
	SrcConnectors []string       `json:"srcConnectors"`
	DstConnectors []string       `json:"dstConnectors"`
}

// connector is one "<tag>-<src>-<dst>" edge string.
type connector struct {
	src, dst string
}

func parseConnector(s string) (connector, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return connector{}, fmt.Errorf("%w: connector %q is not <tag>-<src>-<dst>", ErrInvalidDefinition, s)
	}
	return connector{src: parts[1], dst: parts[2]}, nil
}

// LoadJSON decodes a designer export. Numbers are kept as json.Number so
// integers survive until coercion.
func LoadJSON(data []byte) (*Definition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var file designerFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	def := &Definition{}
	outgoing := make(map[string][]connector)
	for i, dn := range file.Nodes {
		id, out, in, err := identifyConnections(dn)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		inputs := make([]string, len(in))
		for slot, c := range in {
			inputs[slot] = c.src
		}
		def.Nodes = append(def.Nodes, &NodeDef{
			ID:         id,
			DesignerID: dn.NodeID,
			Proc:       dn.ProcName,
			Module:     dn.Module,
			Params:     dn.ParamsValues,
			Inputs:     inputs,
		})
		outgoing[id] = append(outgoing[id], out...)
	}

	if err := checkMirrored(def, outgoing); err != nil {
		return nil, err
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// identifyConnections derives a node's id from its connectors. Destination
// connectors end in the node's own id and source connectors carry it in the
// middle; destination connectors win. Without connectors the designer id is
// used.
func identifyConnections(dn designerNode) (string, []connector, []connector, error) {
	var out, in []connector
	var fromSrc, fromDst string

	for _, s := range dn.SrcConnectors {
		c, err := parseConnector(s)
		if err != nil {
			return "", nil, nil, err
		}
		if fromSrc != "" && fromSrc != c.src {
			return "", nil, nil, fmt.Errorf("%w: source connectors name both %q and %q", ErrInvalidDefinition, fromSrc, c.src)
		}
		fromSrc = c.src
		out = append(out, c)
	}
	for _, s := range dn.DstConnectors {
		c, err := parseConnector(s)
		if err != nil {
			return "", nil, nil, err
		}
		if fromDst != "" && fromDst != c.dst {
			return "", nil, nil, fmt.Errorf("%w: destination connectors name both %q and %q", ErrInvalidDefinition, fromDst, c.dst)
		}
		fromDst = c.dst
		in = append(in, c)
	}

	switch {
	case fromDst != "":
		if fromSrc != "" && fromSrc != fromDst {
			return "", nil, nil, fmt.Errorf("%w: connectors disagree on node id (%q, %q)", ErrInvalidDefinition, fromDst, fromSrc)
		}
		return fromDst, out, in, nil
	case fromSrc != "":
		return fromSrc, out, in, nil
	case dn.NodeID != "":
		return dn.NodeID, out, in, nil
	default:
		return "", nil, nil, fmt.Errorf("%w: could not determine id for node %q", ErrInvalidDefinition, dn.ProcName)
	}
}

// checkMirrored ensures every outgoing connector reappears as an input of
// its destination.
func checkMirrored(def *Definition, outgoing map[string][]connector) error {
	inputs := make(map[string][]string, len(def.Nodes))
	for _, n := range def.Nodes {
		inputs[n.ID] = n.Inputs
	}
	for _, n := range def.Nodes {
		for _, c := range outgoing[n.ID] {
			in, ok := inputs[c.dst]
			if !ok {
				return fmt.Errorf("%w: node %s connects to %w %q", ErrInvalidDefinition, n.ID, ErrUnknownNode, c.dst)
			}
			if !slices.Contains(in, c.src) {
				return fmt.Errorf("%w: edge %s -> %s has no matching destination connector", ErrInvalidDefinition, c.src, c.dst)
			}
		}
	}
	return nil
}
