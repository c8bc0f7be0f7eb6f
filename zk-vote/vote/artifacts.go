package vote

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/kysee/anonvote/log"
	"github.com/kysee/anonvote/zk-vote/types"
)

func artifactPaths(dir string, depth int) (ccsPath, pkPath, vkPath string) {
	base := filepath.Join(dir, fmt.Sprintf("vote-d%d", depth))
	return base + ".ccs", base + ".pk", base + ".vk"
}

// SaveArtifacts writes the constraint system and both keys under dir.
func (ps *ProvingSystem) SaveArtifacts(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	ccsPath, pkPath, vkPath := artifactPaths(dir, ps.TreeDepth)
	for path, obj := range map[string]io.WriterTo{
		ccsPath: ps.CCS,
		pkPath:  ps.ProvingKey,
		vkPath:  ps.VerifyingKey,
	} {
		if err := writeArtifact(path, obj); err != nil {
			return err
		}
	}
	log.Infow("vote circuit artifacts written", "dir", dir, "depth", ps.TreeDepth)
	return nil
}

func writeArtifact(path string, obj io.WriterTo) error {
	var buf bytes.Buffer
	if _, err := obj.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to serialize %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// LoadArtifacts reads what SaveArtifacts wrote. Any failure is a ProofGenerationError,
// since without the artifacts no proof can be produced.
func LoadArtifacts(dir string, depth int) (*ProvingSystem, error) {
	ccsPath, pkPath, vkPath := artifactPaths(dir, depth)

	ccs := groth16.NewCS(ecc.BN254)
	if err := readArtifact(ccsPath, ccs); err != nil {
		return nil, &types.ProofGenerationError{Err: err}
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readArtifact(pkPath, pk); err != nil {
		return nil, &types.ProofGenerationError{Err: err}
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readArtifact(vkPath, vk); err != nil {
		return nil, &types.ProofGenerationError{Err: err}
	}
	return &ProvingSystem{
		TreeDepth:    depth,
		CCS:          ccs,
		ProvingKey:   pk,
		VerifyingKey: vk,
	}, nil
}

func readArtifact(path string, obj io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open artifact: %w", err)
	}
	defer f.Close()
	if _, err := obj.ReadFrom(f); err != nil {
		return fmt.Errorf("cannot read artifact %s: %w", path, err)
	}
	return nil
}

// ExportSolidity writes the on-chain groth16 verifier for this circuit.
func (ps *ProvingSystem) ExportSolidity(w io.Writer) error {
	return ps.VerifyingKey.ExportSolidity(w)
}
