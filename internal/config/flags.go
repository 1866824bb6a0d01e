package config

import "flag"

// flagSet collects command-line overrides. A dedicated flag.FlagSet keeps
// LoadConfig callable with explicit arguments from tests and both binaries.
type flagSet struct {
	fs *flag.FlagSet

	env           string
	logLevel      string
	dataPath      string
	port          string
	readTimeout   string
	writeTimeout  string
	idleTimeout   string
	lookupTimeout string
	lookupRetries string
	covers        string
	importWorkers string
	parserPages   string
	parserDocs    string
	watch         string
	envFile       string

	args []string
}

func newFlagSet(args []string) *flagSet {
	f := &flagSet{fs: flag.NewFlagSet("bookshelf", flag.ContinueOnError), args: args}

	f.fs.StringVar(&f.env, "env", "", "Environment (development, production)")
	f.fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.fs.StringVar(&f.dataPath, "data-path", "", "Base path for database and covers")
	f.fs.StringVar(&f.port, "port", "", "Server port (default: 8080)")
	f.fs.StringVar(&f.readTimeout, "read-timeout", "", "HTTP read timeout (default: 15s)")
	f.fs.StringVar(&f.writeTimeout, "write-timeout", "", "HTTP write timeout (default: 15s)")
	f.fs.StringVar(&f.idleTimeout, "idle-timeout", "", "HTTP idle timeout (default: 60s)")
	f.fs.StringVar(&f.lookupTimeout, "lookup-timeout", "", "Metadata lookup timeout (default: 10s)")
	f.fs.StringVar(&f.lookupRetries, "lookup-retries", "", "Metadata lookup retries (default: 2)")
	f.fs.StringVar(&f.covers, "fetch-covers", "", "Fetch cover images (default: true)")
	f.fs.StringVar(&f.importWorkers, "import-workers", "", "Concurrent folder import workers (default: 4)")
	f.fs.StringVar(&f.parserPages, "parser-pages", "", "PDF pages scanned per file (default: 10)")
	f.fs.StringVar(&f.parserDocs, "parser-docs", "", "EPUB documents scanned per file (default: 10)")
	f.fs.StringVar(&f.watch, "watch-folders", "", "Watch active folders for new files (default: true)")
	f.fs.StringVar(&f.envFile, "env-file", ".env", "Path to .env file")

	return f
}

func (f *flagSet) parse() error {
	return f.fs.Parse(f.args)
}

// Args returns the positional arguments left after flag parsing.
func (f *flagSet) Args() []string {
	return f.fs.Args()
}
