package flagx

import (
	"flag"
	"io"
	"strconv"
	"strings"
)

// FilterArgs keeps only the flags listed in allowed, together with their
// values, preserving order. Both "-flag value" and "-flag=value" are
// accepted. A following argument is taken as the value unless it looks
// like a flag; negative numbers such as "-33.86" count as values.
func FilterArgs(args []string, allowed []string) []string {
	keep := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		keep[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		name, _, inline := strings.Cut(args[i], "=")
		if !strings.HasPrefix(name, "-") || !keep[name] {
			continue
		}
		out = append(out, args[i])
		if !inline && i+1 < len(args) && isValue(args[i+1]) {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

func isValue(arg string) bool {
	if !strings.HasPrefix(arg, "-") {
		return true
	}
	_, err := strconv.ParseFloat(arg, 64)
	return err == nil
}

// JsonConfigFlags extracts the config file path given with -c or -config.
//
// Only these flags are parsed; everything else in args is ignored, so the
// regular flag set can be parsed afterwards without conflicts.
//
// If neither -c nor -config is present, an empty string is returned.
func JsonConfigFlags(args []string) string {
	var config string

	args = FilterArgs(args, []string{"-c", "-config", "--config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return config
}

// SplitCommand separates global flags from a subcommand invocation of the
// form "prog [global flags] <command> [command args]".
//
// valueFlags names the global flags that consume the following argument
// (e.g. "-c"). Flags written as "-flag=value" never consume the next
// argument. If no command is present, command is empty and rest is nil.
func SplitCommand(args []string, valueFlags []string) (global []string, command string, rest []string) {
	takesValue := make(map[string]struct{}, len(valueFlags))
	for _, f := range valueFlags {
		takesValue[f] = struct{}{}
	}

	global = make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return global, args[i+1], args[i+2:]
			}
			return global, "", nil
		}
		if !strings.HasPrefix(arg, "-") {
			return global, arg, args[i+1:]
		}
		global = append(global, arg)
		if strings.Contains(arg, "=") {
			continue
		}
		if _, ok := takesValue[arg]; ok && i+1 < len(args) {
			global = append(global, args[i+1])
			i++
		}
	}
	return global, "", nil
}
