// Command unifs inspects and moves files across every backend unifs knows:
// local paths, ftp://, http(s)://, sftp://, memory:// volumes and resource://
// tables.
//
//	unifs ls ftp://mirror.example.com/pub -r --pattern '*.iso'
//	unifs cp https://example.com/data.json ./downloads
//	unifs sum --alg xxhash sftp://backup.example.com/db/dump.sql
package main

import (
	"fmt"
	"os"

	"github.com/gobeaver/unifs"
	_ "github.com/gobeaver/unifs/driver/ftp"
	_ "github.com/gobeaver/unifs/driver/http"
	_ "github.com/gobeaver/unifs/driver/local"
	_ "github.com/gobeaver/unifs/driver/memory"
	_ "github.com/gobeaver/unifs/driver/resource"
	_ "github.com/gobeaver/unifs/driver/sftp"
)

func main() {
	root := newRootCmd(unifs.NewFromEnv)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
