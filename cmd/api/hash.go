package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auth-core/internal/auth"
)

var (
	hashAlgorithm string
	hashCost      int
)

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Hash a password read from stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		hasher, err := auth.NewPasswordHasher(hashAlgorithm, hashCost)
		if err != nil {
			return err
		}

		password, err := readSecret(cmd.InOrStdin())
		if err != nil {
			return err
		}

		digest, err := hasher.Hash(password)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), digest)
		return nil
	},
}

func init() {
	hashCmd.Flags().StringVar(&hashAlgorithm, "algorithm", auth.HashBcrypt, "bcrypt or argon2id")
	hashCmd.Flags().IntVar(&hashCost, "cost", 0, "bcrypt cost (0 uses the library default)")
}
