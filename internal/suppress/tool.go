package suppress

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"arbor/internal/ast"
	"arbor/internal/source"
)

// ErrInvalidPosition reports a position that is not "line:column".
var ErrInvalidPosition = errors.New("position must be in the form line:column")

var positionRe = regexp.MustCompile(`^\d+:\d+$`)

// Parser produces the tree of a loaded file.
type Parser interface {
	Parse(ctx context.Context, file *source.File) (*ast.Tree, error)
}

// LineSeparator joins the expressions printed by Generate.
var LineSeparator = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// ParsePosition validates and splits "line:column".
func ParsePosition(pos string) (line, column int, err error) {
	if !positionRe.MatchString(pos) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPosition, pos)
	}
	l, c, _ := strings.Cut(pos, ":")
	if line, err = strconv.Atoi(l); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPosition, pos)
	}
	if column, err = strconv.Atoi(c); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPosition, pos)
	}
	return line, column, nil
}

// Generate loads path, parses it and returns the expressions of every node
// starting at pos, one per line, deepest first. The position is validated
// before the file is read.
func Generate(ctx context.Context, p Parser, fs *source.FileSet, path, pos string, tabWidth int) (string, error) {
	line, column, err := ParsePosition(pos)
	if err != nil {
		return "", err
	}
	id, err := fs.Load(path)
	if err != nil {
		return "", err
	}
	file := fs.Get(id)
	tree, err := p.Parse(ctx, file)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	paths := NewLocator(tabWidth).Locate(tree, file, line, column, ast.AnyKind)
	return strings.Join(paths, LineSeparator), nil
}
