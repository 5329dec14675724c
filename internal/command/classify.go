package command

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jbweber/vmchat/internal/naming"
)

// Classify parses canonical command text into a Command. Anything outside the
// supported vocabulary, or missing what the operation needs, comes back as a
// Rejection instead. Unknown flags are dropped silently.
func Classify(canonical string) (Command, *Rejection) {
	words, problem := strictWords(canonical)
	if problem != "" {
		return Command{}, reject(canonical, ReasonMalformedArguments, "%s", problem)
	}
	if len(words) == 0 || !isBinaryWord(words[0]) {
		return Command{}, reject(canonical, ReasonUnsupportedOperation, "not a %s command", Binary)
	}
	if len(words) < 2 {
		return Command{}, reject(canonical, ReasonUnsupportedOperation, "no operation given")
	}
	op, ok := ParseOperation(words[1])
	if !ok {
		return Command{}, reject(canonical, ReasonUnsupportedOperation, "%q is not a supported operation", words[1])
	}

	fs := pflag.NewFlagSet(Binary+" "+string(op), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsAllowlist.UnknownFlags = true
	name := fs.StringP("name", "n", "", "instance name")
	memory := fs.StringP("memory", "m", "", "memory to allocate")
	disk := fs.StringP("disk", "d", "", "disk space to allocate")
	cpus := fs.StringP("cpus", "c", "", "number of CPUs")
	image := fs.String("image", "", "image or release to launch")
	purge := fs.BoolP("purge", "p", false, "purge after delete")
	fs.String("format", "", "output format")

	if err := fs.Parse(words[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Command{}, reject(canonical, ReasonMalformedArguments, "help was requested")
		}
		return Command{}, reject(canonical, ReasonMalformedArguments, "%v", err)
	}
	for _, f := range []struct {
		flag  string
		value string
	}{{"name", *name}, {"memory", *memory}, {"disk", *disk}, {"cpus", *cpus}, {"image", *image}} {
		if strings.HasPrefix(f.value, "-") {
			return Command{}, reject(canonical, ReasonMalformedArguments, "--%s needs a value, got flag %q", f.flag, f.value)
		}
	}

	cmd := Command{Operation: op, Canonical: canonical}
	args := fs.Args()

	switch op {
	case OpLaunch:
		release := ""
		rest := make([]string, 0, len(args))
		for _, a := range args {
			if r, ok := CanonicalRelease(a); ok && release == "" {
				release = r
				continue
			}
			rest = append(rest, a)
		}
		if *image != "" {
			release = *image
			if r, ok := CanonicalRelease(*image); ok {
				release = r
			}
		}
		cmd.Name = *name
		if cmd.Name == "" && len(rest) > 0 {
			cmd.Name = rest[0]
		}
		cmd.Parameters = launchParameters(*memory, *disk, *cpus, release)
	case OpDelete:
		cmd.Purge = *purge
		fallthrough
	default:
		if !op.RequiresName() {
			break
		}
		cmd.Name = *name
		if cmd.Name == "" && len(args) > 0 {
			cmd.Name = args[0]
		}
	}

	if op.RequiresName() {
		if strings.TrimSpace(cmd.Name) == "" {
			return Command{}, reject(canonical, ReasonMissingResourceName, "%s needs an instance name", op)
		}
		if !naming.ValidResourceName(cmd.Name) {
			return Command{}, reject(canonical, ReasonInvalidResourceName,
				"%q may only contain letters, digits, hyphens and underscores", cmd.Name)
		}
	}
	return cmd, nil
}

func launchParameters(memory, disk, cpus, image string) map[string]string {
	params := make(map[string]string, 4)
	for key, value := range map[string]string{
		ParamMemory: memory,
		ParamDisk:   disk,
		ParamCPUs:   cpus,
		ParamImage:  image,
	} {
		if value != "" {
			params[key] = value
		}
	}
	return params
}

// Parse runs Normalize and Classify on a single command.
func (n Normalizer) Parse(text string) (Command, *Rejection) {
	return Classify(n.Normalize(text))
}
