package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags KEY",
	Short: "Print the tags of a key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		tags, err := s.Tags(args[0])
		check(err)
		for _, name := range sortedNames(tags) {
			fmt.Printf("%s=%s\n", color.YellowString(name), tags[name])
		}
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Change the tags of a key",
}

var tagSetCmd = &cobra.Command{
	Use:   "set KEY NAME VALUE",
	Short: "Set one tag of a key",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		check(s.SetTag(args[0], args[1], args[2]))
	},
}

var tagDelCmd = &cobra.Command{
	Use:   "del KEY NAME",
	Short: "Delete one tag of a key",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		check(s.DeleteTag(args[0], args[1]))
	},
}

func init() {
	tagCmd.AddCommand(tagSetCmd)
	tagCmd.AddCommand(tagDelCmd)
}

func sortedNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// formatTags renders tags as sorted name=value pairs.
func formatTags(tags map[string]string) string {
	pairs := make([]string, 0, len(tags))
	for _, name := range sortedNames(tags) {
		pairs = append(pairs, name+"="+tags[name])
	}
	return strings.Join(pairs, ",")
}
