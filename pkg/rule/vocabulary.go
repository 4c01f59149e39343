package rule

// AttrType is the declared type of a node attribute.
type AttrType string

const (
	TypeString AttrType = "string"
	TypeInt    AttrType = "int"
	TypeBool   AttrType = "bool"
	TypeList   AttrType = "list"
)

// vocabulary is the fixed node schema shared with the parser collaborator.
// Catalog load rejects signatures referencing kinds or attributes outside
// it, so a rule can never silently match nothing due to a typo.
var vocabulary = map[string]map[string]AttrType{
	"unit": {
		"language": TypeString,
	},
	"class": {
		"name":                       TypeString,
		"abstract":                   TypeBool,
		"entity":                     TypeBool,
		"serializable":               TypeBool,
		"field.names":                TypeList,
		"field.types":                TypeList,
		"field.count":                TypeInt,
		"method.count":               TypeInt,
		"constructor.count":          TypeInt,
		"dependency.count":           TypeInt,
		"accessor.method.count":      TypeInt,
		"static.mutable.field.count": TypeInt,
		"loc":                        TypeInt,
	},
	"interface": {
		"name":         TypeString,
		"method.count": TypeInt,
	},
	"enum": {
		"name":           TypeString,
		"constant.count": TypeInt,
	},
	"constructor": {
		"name":                  TypeString,
		"param.count":           TypeInt,
		"param.names":           TypeList,
		"param.types":           TypeList,
		"primitive.param.count": TypeInt,
	},
	"method": {
		"name":                 TypeString,
		"param.count":          TypeInt,
		"param.names":          TypeList,
		"param.types":          TypeList,
		"loc":                  TypeInt,
		"nesting.depth":        TypeInt,
		"cyclomatic":           TypeInt,
		"bool.param.count":     TypeInt,
		"setter":               TypeBool,
		"getter":               TypeBool,
		"returns.self":         TypeBool,
		"foreign.access.count": TypeInt,
		"self.access.count":    TypeInt,
	},
	"parameter": {
		"name":   TypeString,
		"type":   TypeString,
		"bool":   TypeBool,
		"unused": TypeBool,
	},
	"field": {
		"name":       TypeString,
		"type":       TypeString,
		"visibility": TypeString,
		"relation":   TypeString,
		"collection": TypeBool,
		"recursive":  TypeBool,
		"static":     TypeBool,
	},
	"call": {
		"callee":         TypeString,
		"receiver":       TypeString,
		"chain.length":   TypeInt,
		"arg.count":      TypeInt,
		"query":          TypeBool,
		"bounded":        TypeBool,
		"relation.fetch": TypeString,
	},
	"switch": {
		"subject":         TypeString,
		"subject.kind":    TypeString,
		"case.count":      TypeInt,
		"case.labels":     TypeList,
		"creates.types":   TypeList,
		"default.present": TypeBool,
	},
	"if": {
		"condition.type.check": TypeBool,
		"chain.length":         TypeInt,
	},
	"loop": {
		"kind":          TypeString,
		"nesting.depth": TypeInt,
	},
	"comment": {
		"text":             TypeString,
		"doc":              TypeBool,
		"mentions.missing": TypeInt,
	},
	"literal": {
		"value":        TypeString,
		"numeric":      TypeBool,
		"in.condition": TypeBool,
	},
}

// KnownKind reports whether the node kind is declared in the vocabulary.
func KnownKind(kind string) bool {
	_, ok := vocabulary[kind]
	return ok
}

// AttrDeclared reports whether attr is declared for any kind, returning the
// declared types. An attribute may appear on several kinds; the vocabulary
// keeps types consistent across them.
func AttrDeclared(attr string) (AttrType, bool) {
	for _, attrs := range vocabulary {
		if t, ok := attrs[attr]; ok {
			return t, true
		}
	}
	return "", false
}

// KindHasAttr reports whether attr is declared for the given kind.
func KindHasAttr(kind, attr string) bool {
	attrs, ok := vocabulary[kind]
	if !ok {
		return false
	}
	_, ok = attrs[attr]
	return ok
}

// Kinds returns the declared node kinds.
func Kinds() []string {
	out := make([]string, 0, len(vocabulary))
	for k := range vocabulary {
		out = append(out, k)
	}
	return out
}
