// ply converts property lists between formats, with JSON and YAML on the
// side. Input is read from a file or standard input, gunzipped if necessary,
// and the converted document is written to standard output.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v2"

	"github.com/plistkit/plist"
)

const (
	jsonFormat = 100 + iota
	yamlFormat
)

var outputFormats = map[string]int{
	"xml":    plist.XMLFormat,
	"binary": plist.BinaryFormat,
	"json":   jsonFormat,
	"yaml":   yamlFormat,
}

type options struct {
	Convert string `short:"c" long:"convert" description:"output format: xml, binary, json or yaml" default:"xml"`
	From    string `short:"f" long:"from" description:"input format: plist, json or yaml" default:"plist"`
	Output  string `short:"o" long:"output" description:"output file (default standard output)"`
	Indent  string `short:"i" long:"indent" description:"indent string for pretty output" default:"\t"`

	Args struct {
		File string `positional-arg-name:"file"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	format, ok := outputFormats[opts.Convert]
	if !ok {
		bail(fmt.Errorf("unknown output format %q", opts.Convert))
	}

	document, err := readDocument(opts.Args.File)
	if err != nil {
		bail(err)
	}

	val, err := decodeDocument(document, opts.From)
	if err != nil {
		bail(err)
	}

	out := os.Stdout
	if opts.Output != "" {
		out, err = os.Create(opts.Output)
		if err != nil {
			bail(err)
		}
		defer out.Close()
	}

	if err := encodeDocument(out, val, format, opts.Indent); err != nil {
		bail(err)
	}
}

// readDocument slurps the input and transparently gunzips it.
func readDocument(path string) ([]byte, error) {
	var in io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	document, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}

	if len(document) > 2 && document[0] == 0x1f && document[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(document))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	return document, nil
}

func decodeDocument(document []byte, from string) (interface{}, error) {
	var val interface{}
	switch from {
	case "plist":
		err := plist.NewDecoder(bytes.NewReader(document)).Decode(&val)
		return val, err
	case "json":
		err := json.Unmarshal(document, &val)
		return val, err
	case "yaml":
		err := yaml.Unmarshal(document, &val)
		return cleanYAML(val), err
	}
	return nil, fmt.Errorf("unknown input format %q", from)
}

func encodeDocument(out io.Writer, val interface{}, format int, indent string) error {
	switch format {
	case jsonFormat:
		enc := json.NewEncoder(out)
		enc.SetIndent("", indent)
		return enc.Encode(val)
	case yamlFormat:
		document, err := yaml.Marshal(val)
		if err != nil {
			return err
		}
		_, err = out.Write(document)
		return err
	}
	return plist.NewEncoderForFormat(out, format, plist.Indent(indent)).Encode(val)
}

// cleanYAML rewrites the map[interface{}]interface{} trees yaml.v2 produces
// into the string-keyed maps property lists require.
func cleanYAML(v interface{}) interface{} {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, sv := range v {
			out[fmt.Sprint(k)] = cleanYAML(sv)
		}
		return out
	case []interface{}:
		for i := range v {
			v[i] = cleanYAML(v[i])
		}
		return v
	}
	return v
}

func bail(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
