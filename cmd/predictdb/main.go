// predictdb manages prediction databases for predictd.
//
//	predictdb build <corpus.txt> <predict.db>   Compile a text corpus
//	predictdb lookup <predict.db> <word>        Show continuations for a word
//	predictdb verify <predict.db>               Check the sealed corpus digest
//	predictdb stats <predict.db>                Show database statistics
package main

import (
	"flag"
	"fmt"
	"os"

	"predictd/internal/predictdb"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = cmdBuild(os.Args[2:])
	case "lookup":
		err = cmdLookup(os.Args[2:])
	case "verify":
		err = cmdVerify(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "predictdb: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`predictdb - prediction database tool

USAGE:
    predictdb <command> [options]

COMMANDS:
    build <corpus.txt> <predict.db>   Compile a text corpus into a database
    lookup <predict.db> <word>        Show continuations for a word
    verify <predict.db>               Check the sealed corpus digest
    stats <predict.db>                Show database statistics
    help                              Show this help message

The corpus is plain text; each word pair on a line becomes one weighted
continuation. Rebuilding replaces the previous contents and reseals the
corpus digest.`)
}

func cmdBuild(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: predictdb build <corpus.txt> <predict.db>")
	}
	corpus, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer corpus.Close()

	db, err := predictdb.Open(args[1])
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.BuildFromCorpus(corpus)
	if err != nil {
		return err
	}
	fmt.Printf("Built %s: %d continuations\n", args[1], n)
	return nil
}

func cmdLookup(args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	limit := fs.Int("n", 10, "maximum continuations to show")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: predictdb lookup [-n N] <predict.db> <word>")
	}

	db, err := predictdb.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer db.Close()

	cands, err := db.Lookup(fs.Arg(1), *limit)
	if err != nil {
		return err
	}
	if len(cands) == 0 {
		fmt.Printf("No continuations for %q\n", fs.Arg(1))
		return nil
	}
	for i, c := range cands {
		fmt.Printf("%2d. %s\n", i+1, c)
	}
	return nil
}

func cmdVerify(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: predictdb verify <predict.db>")
	}
	db, err := predictdb.Open(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Verify(); err != nil {
		return err
	}
	fmt.Println("OK: corpus digest matches")
	return nil
}

func cmdStats(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: predictdb stats <predict.db>")
	}
	db, err := predictdb.Open(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Count()
	if err != nil {
		return err
	}
	fmt.Printf("Continuations: %d\n", n)
	return nil
}
