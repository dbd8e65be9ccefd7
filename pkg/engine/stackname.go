package engine

import (
	"regexp"

	"github.com/google/uuid"
)

// MaxStackNameLength is the longest stack name Heat accepts.
const MaxStackNameLength = 255

var invalidStackNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// StackName derives a stack name from a resource id and name. The result
// starts with a letter, contains only [A-Za-z0-9_.-] and is at most 255
// characters. Overlong names lose characters from the front so the id
// suffix survives.
func StackName(resourceID, resourceName string) string {
	name := invalidStackNameChars.ReplaceAllString(resourceName+"."+resourceID, "")

	needsPrefix := name == "" || !isASCIILetter(name[0])
	max := MaxStackNameLength
	if needsPrefix {
		max--
	}
	if len(name) > max {
		name = name[len(name)-max:]
	}
	if needsPrefix {
		name = "s" + name
	}
	return name
}

// RandomStackName returns a stack name for resources without an identity.
func RandomStackName() string {
	return "s" + uuid.New().String()
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
