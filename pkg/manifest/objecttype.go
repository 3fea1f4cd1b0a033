package manifest

// ObjectType is the kind of code unit a manifest describes.
type ObjectType string

// Object types, from the outermost container inwards.
const (
	ObjectInvalid  ObjectType = "invalid"
	ObjectPackage  ObjectType = "package"
	ObjectModule   ObjectType = "module"
	ObjectClass    ObjectType = "class"
	ObjectMethod   ObjectType = "method"
	ObjectFunction ObjectType = "function"
)

// containment maps a container type to the types it may directly hold.
var containment = map[ObjectType]map[ObjectType]bool{
	ObjectPackage:  {ObjectPackage: true, ObjectModule: true, ObjectClass: true, ObjectFunction: true},
	ObjectModule:   {ObjectClass: true, ObjectFunction: true},
	ObjectClass:    {ObjectMethod: true},
	ObjectMethod:   {},
	ObjectFunction: {},
}

// CanContain reports whether a unit of type t may directly contain a unit
// of type other.
func (t ObjectType) CanContain(other ObjectType) bool {
	return containment[t][other]
}

// CanBeContainedIn reports whether t may be a direct member of other.
func (t ObjectType) CanBeContainedIn(other ObjectType) bool {
	return other.CanContain(t)
}

// PossibleChildren lists the types t may directly contain, in a stable order.
func (t ObjectType) PossibleChildren() []ObjectType {
	var out []ObjectType
	for _, c := range []ObjectType{ObjectPackage, ObjectModule, ObjectClass, ObjectMethod, ObjectFunction} {
		if containment[t][c] {
			out = append(out, c)
		}
	}
	return out
}

// String returns the type name.
func (t ObjectType) String() string {
	return string(t)
}
