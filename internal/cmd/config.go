package cmd

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/simrig/hshifter/internal/configpaths"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit scaffolds a configuration file for a specific command.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"serve,feed"`
	Format  string `help:"Output format" enum:"json,yaml,yml,toml" default:"yaml"`
	Output  string `help:"Destination file path (defaults to <command>.<ext> in the current directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run generates the template by walking the command struct and its kong tags.
func (c *ConfigInit) Run() error {
	root, err := templateFor(c.Command)
	if err != nil {
		return err
	}

	format := strings.ToLower(c.Format)
	dest := c.Output
	if dest == "" {
		dest = c.Command + "." + configpaths.Ext(format)
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}

	data, err := encodeTemplate(root, format)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func templateFor(command string) (map[string]any, error) {
	switch command {
	case "serve":
		return buildMapFromStruct(reflect.TypeOf(Serve{}), nil), nil
	case "feed":
		return buildMapFromStruct(reflect.TypeOf(Feed{}), nil), nil
	default:
		return nil, fmt.Errorf("unknown command %q; expected serve or feed", command)
	}
}

func encodeTemplate(root map[string]any, format string) ([]byte, error) {
	switch configpaths.Ext(format) {
	case "yaml":
		return yaml.Marshal(root)
	case "toml":
		return toml.Marshal(root)
	default:
		return json.MarshalIndent(root, "", "  ")
	}
}

func lowerCamel(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] += 'a' - 'A'
	}
	return string(r)
}

var textUnmarshaler = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// buildMapFromStruct mirrors what kong would bind: embedded structs become
// nested maps keyed by their prefix, positional args and subcommands are
// skipped, and ${var=default} placeholders resolve against set:"" tags.
func buildMapFromStruct(t reflect.Type, vars map[string]string) map[string]any {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]any{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("kong") == "-" {
			continue
		}
		if _, ok := f.Tag.Lookup("arg"); ok {
			continue
		}
		if _, ok := f.Tag.Lookup("cmd"); ok {
			continue
		}

		if _, ok := f.Tag.Lookup("embed"); ok {
			sub := buildMapFromStruct(f.Type, withSetVars(vars, f.Tag))
			name := strings.TrimSuffix(f.Tag.Get("prefix"), ".")
			if name != "" {
				out[name] = sub
			} else {
				for k, v := range sub {
					out[k] = v
				}
			}
			continue
		}

		def := interpolate(f.Tag.Get("default"), vars)
		if val := defaultValueForField(f.Type, def); val != nil {
			out[lowerCamel(f.Name)] = val
		}
	}
	return out
}

func defaultValueForField(t reflect.Type, def string) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "time" && t.Name() == "Duration" {
		if def != "" {
			return def
		}
		return "0s"
	}
	if reflect.PointerTo(t).Implements(textUnmarshaler) {
		return def
	}
	switch t.Kind() {
	case reflect.String:
		return def
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, _ := strconv.ParseInt(def, 10, 64)
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, _ := strconv.ParseUint(def, 10, 64)
		return n
	case reflect.Float32, reflect.Float64:
		f, _ := strconv.ParseFloat(def, 64)
		return f
	case reflect.Struct:
		return buildMapFromStruct(t, nil)
	default:
		return nil
	}
}

var varPattern = regexp.MustCompile(`\$\{(\w+)(?:=([^}]*))?\}`)

func interpolate(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := varPattern.FindStringSubmatch(m)
		if v, ok := vars[sub[1]]; ok {
			return v
		}
		return sub[2]
	})
}

func withSetVars(parent map[string]string, tag reflect.StructTag) map[string]string {
	sets := tagValues(tag, "set")
	if len(sets) == 0 {
		return parent
	}
	vars := make(map[string]string, len(parent)+len(sets))
	for k, v := range parent {
		vars[k] = v
	}
	for _, kv := range sets {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}

// tagValues returns every value of key in tag. reflect.StructTag.Get only
// returns the first, while kong allows set:"" to repeat.
func tagValues(tag reflect.StructTag, key string) []string {
	var out []string
	s := string(tag)
	for {
		s = strings.TrimLeft(s, " ")
		name, rest, ok := strings.Cut(s, ":")
		if !ok {
			return out
		}
		quoted, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return out
		}
		s = rest[len(quoted):]
		if name != key {
			continue
		}
		if v, err := strconv.Unquote(quoted); err == nil {
			out = append(out, v)
		}
	}
}
