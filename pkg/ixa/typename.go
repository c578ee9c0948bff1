package ixa

import "reflect"

// typeName returns a short, human-readable name for E, used only to tag
// metrics and log lines — never as a lookup key (the event bus and entity
// store key on reflect.Type or generic parameters directly).
func typeName[E any]() string {
	t := reflect.TypeOf((*E)(nil)).Elem()
	return t.String()
}
