package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fulldump/goconfig"

	"github.com/fulldump/objectstore/bootstrap"
	"github.com/fulldump/objectstore/configuration"
)

var banner = `
       _     _           _       _
  ___ | |__ (_) ___  ___| |_ ___| |_ ___  _ __ ___
 / _ \| '_ \| |/ _ \/ __| __/ __| __/ _ \| '__/ _ \
| (_) | |_) | |  __/ (__| |_\__ \ || (_) | | |  __/
 \___/|_.__// |\___|\___|\__|___/\__\___/|_|  \___|
          |__/                 version ` + bootstrap.VERSION + `
`

func main() {

	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", bootstrap.VERSION)
		return
	}

	if c.ShowBanner {
		fmt.Println(banner)
	}

	if c.ShowConfig {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "    ")
		e.Encode(c)
	}

	start, _, err := bootstrap.Bootstrap(&c)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err.Error())
		os.Exit(-1)
	}

	start()
}
