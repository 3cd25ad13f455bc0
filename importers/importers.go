// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package importers

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ozanh/ulan"
)

// DefaultExt is the file extension of source modules.
const DefaultExt = ".ulan"

// FileImporter is an implemention of ulan.ExtImporter to import source
// modules from file system. Module a.b is looked up as a/b.ulan under each
// directory of Paths in order.
type FileImporter struct {
	Paths  []string
	Ext    string
	Logger logrus.FieldLogger
	path   string
}

var _ ulan.ExtImporter = (*FileImporter)(nil)

// Get implements ulan.ExtImporter and returns an importer for the file of
// name, or nil if no file is found.
func (m *FileImporter) Get(name string) ulan.ExtImporter {
	if name == "" {
		return nil
	}
	ext := m.Ext
	if ext == "" {
		ext = DefaultExt
	}

	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/")) + ext
	for _, dir := range m.Paths {
		path := filepath.Join(dir, rel)
		if p, err := filepath.Abs(path); err == nil {
			path = p
		}
		st, err := os.Stat(path)
		if err != nil || !st.Mode().IsRegular() {
			continue
		}
		m.logger().WithFields(logrus.Fields{
			"module": name,
			"path":   path,
		}).Debug("module found")
		return &FileImporter{
			Paths:  m.Paths,
			Ext:    m.Ext,
			Logger: m.Logger,
			path:   path,
		}
	}
	m.logger().WithField("module", name).Debug("module not found")
	return nil
}

// Name returns the absolute path of the module file. It is empty unless the
// importer is returned by Get.
func (m *FileImporter) Name() string {
	return m.path
}

// Import returns the content of the module file.
func (m *FileImporter) Import(moduleName string) (interface{}, error) {
	if m.path == "" || moduleName == "" {
		return nil, errors.New("invalid import call")
	}
	return os.ReadFile(m.path)
}

func (m *FileImporter) logger() logrus.FieldLogger {
	if m.Logger != nil {
		return m.Logger
	}
	return discardLogger
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
