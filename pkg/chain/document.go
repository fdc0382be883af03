package chain

import (
	"fmt"
	"io"
	"os"

	"github.com/openfroyo/anlchain/pkg/docgen"
)

// MakeDoc writes the XML description of the chain's modules to path, or to
// the chain output when path is empty. The engine is not started.
func (c *AnalysisChain) MakeDoc(path, category string) error {
	return c.writeTo(path, func(w io.Writer) error {
		return docgen.GenerateDocument(w, c.Modules(), category)
	})
}

// MakeScript writes a configuration script that rebuilds the chain to path,
// or to the chain output when path is empty.
func (c *AnalysisChain) MakeScript(path string, opts docgen.ScriptOptions) error {
	return c.writeTo(path, func(w io.Writer) error {
		return docgen.GenerateScript(w, c.Modules(), opts)
	})
}

func (c *AnalysisChain) writeTo(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(c.out)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	c.logger.Info().Str("path", path).Msg("Wrote file")
	return nil
}
