package shim

import (
	"encoding/xml"
	"strings"

	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

var declaration = strings.TrimSpace(introspect.IntrospectDeclarationString)

func arg(name, typ, dir string) introspect.Arg {
	return introspect.Arg{Name: name, Type: typ, Direction: dir}
}

var managerInterface = introspect.Interface{
	Name: ManagerInterface,
	Methods: []introspect.Method{
		{Name: "GetUnitFileState", Args: []introspect.Arg{
			arg("file", "s", "in"),
			arg("state", "s", "out"),
		}},
		{Name: "StartUnit", Args: []introspect.Arg{
			arg("name", "s", "in"),
			arg("mode", "s", "in"),
			arg("job", "o", "out"),
		}},
		{Name: "StopUnit", Args: []introspect.Arg{
			arg("name", "s", "in"),
			arg("mode", "s", "in"),
			arg("job", "o", "out"),
		}},
		{Name: "StartTransientUnit", Args: []introspect.Arg{
			arg("name", "s", "in"),
			arg("mode", "s", "in"),
			arg("properties", "a(sv)", "in"),
			arg("aux", "a(sa(sv))", "in"),
			arg("job", "o", "out"),
		}},
		{Name: "EnableUnitFiles", Args: []introspect.Arg{
			arg("files", "as", "in"),
			arg("runtime", "b", "in"),
			arg("force", "b", "in"),
			arg("carries_install_info", "b", "out"),
			arg("changes", "a(sss)", "out"),
		}},
		{Name: "DisableUnitFiles", Args: []introspect.Arg{
			arg("files", "as", "in"),
			arg("runtime", "b", "in"),
			arg("changes", "a(sss)", "out"),
		}},
		{Name: "Reload"},
		{Name: "Subscribe"},
		{Name: "Unsubscribe"},
	},
	Signals: []introspect.Signal{
		{Name: "JobRemoved", Args: []introspect.Arg{
			{Name: "id", Type: "u"},
			{Name: "job", Type: "o"},
			{Name: "unit", Type: "s"},
			{Name: "result", Type: "s"},
		}},
	},
	Properties: []introspect.Property{
		{Name: "Virtualization", Type: "s", Access: "read"},
	},
}

var scopeInterface = introspect.Interface{
	Name:    ScopeInterface,
	Methods: []introspect.Method{{Name: "Abandon"}},
}

// managerNode describes the manager object.
func managerNode() *introspect.Node {
	return &introspect.Node{
		Name: ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			managerInterface,
		},
		Children: []introspect.Node{{Name: "unit"}},
	}
}

// unitsNode lists one child per escaped unit name.
func unitsNode(names []string) *introspect.Node {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{introspect.IntrospectData},
	}
	for _, n := range names {
		node.Children = append(node.Children, introspect.Node{Name: Escape(n)})
	}
	return node
}

// unitNode describes a single unit object.
func unitNode() *introspect.Node {
	return &introspect.Node{
		Interfaces: []introspect.Interface{introspect.IntrospectData, scopeInterface},
	}
}

func render(node *introspect.Node) string {
	data, err := xml.Marshal(node)
	if err != nil {
		return declaration + "<node/>"
	}
	return declaration + string(data)
}
