// Package log provides a thin logrus wrapper so every package logs with a
// consistent "component" field instead of rolling its own fmt.Println calls.
package log

import "github.com/sirupsen/logrus"

// New returns a logger entry pre-tagged with the given component name.
func New(component string) *logrus.Entry {
	return logrus.StandardLogger().WithField("component", component)
}
