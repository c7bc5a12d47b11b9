package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sammck/secret-kv/secret"
	"github.com/sammck/secret-kv/xjson"
)

// A dump is an extended JSON object mapping every key to an object holding
// its "value" and "tags".

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print every entry of the store as extended JSON",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		v, err := dump(s.Store)
		check(err)
		check(writeValue(os.Stdout, v, formatJSON))
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Set the entries of an export file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		check(err)
		v, err := xjson.Unmarshal(data, xjson.ModeExtended)
		check(err)
		s := openStore()
		defer s.Close()
		n, err := restore(s.Store, v)
		check(err)
		fmt.Println(color.GreenString("imported"), n, "entries")
	},
}

func dump(s *secret.Store) (xjson.Value, error) {
	it, err := s.Keys()
	if err != nil {
		return xjson.Value{}, err
	}
	entries := make(map[string]xjson.Value, it.Remaining())
	for it.Next() {
		e, err := s.Entry(it.Key(), xjson.ModeExtended)
		if errors.Is(err, secret.ErrNotFound) {
			continue
		}
		if err != nil {
			return xjson.Value{}, err
		}
		tags := make(map[string]xjson.Value, len(e.Tags))
		for name, value := range e.Tags {
			tags[name] = xjson.String(value)
		}
		entries[e.Key] = xjson.Map(map[string]xjson.Value{
			"value": e.Value,
			"tags":  xjson.Map(tags),
		})
	}
	return xjson.Map(entries), nil
}

// restore checks the whole dump before setting any entry.
func restore(s *secret.Store, v xjson.Value) (int, error) {
	if v.Kind() != xjson.KindMap {
		return 0, errors.Errorf("dump is a %s, not an object", v.Kind())
	}
	type entry struct {
		value xjson.Value
		tags  map[string]string
	}
	entries := make(map[string]entry, v.Len())
	for _, key := range v.Keys() {
		item, _ := v.Get(key)
		value, ok := item.Get("value")
		if item.Kind() != xjson.KindMap || !ok {
			return 0, errors.Errorf("entry %q: missing value", key)
		}
		e := entry{value: value}
		if tags, ok := item.Get("tags"); ok {
			if tags.Kind() != xjson.KindMap {
				return 0, errors.Errorf("entry %q: tags is a %s, not an object", key, tags.Kind())
			}
			e.tags = make(map[string]string, tags.Len())
			for _, name := range tags.Keys() {
				tag, _ := tags.Get(name)
				if tag.Kind() != xjson.KindString {
					return 0, errors.Errorf("entry %q: tag %q is a %s, not a string", key, name, tag.Kind())
				}
				e.tags[name] = tag.Str()
			}
		}
		entries[key] = e
	}
	for _, key := range v.Keys() {
		if err := s.Set(key, entries[key].value, entries[key].tags); err != nil {
			return 0, errors.Wrapf(err, "entry %q", key)
		}
	}
	return len(entries), nil
}
