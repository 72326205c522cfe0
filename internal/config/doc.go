// Package config provides configuration parsing for headsync projects.
//
// The configuration is stored in headsync.json at the project root.
// This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "defer": true,
//	  "rules": "./head-rules.yaml",
//	  "server": {
//	    "addr": ":7070",
//	    "allowedOrigins": ["https://example.com"]
//	  },
//	  "render": {
//	    "pretty": false
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "publish": {
//	    "bucket": "my-site",
//	    "key": "partials/head.html",
//	    "region": "eu-west-1"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Server.Addr)
package config
