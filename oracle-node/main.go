// Oracle node implementation.
package main

import (
	"github.com/encointer/personhood-oracle/oracle-node/cmd"
)

func main() {
	cmd.Execute()
}
