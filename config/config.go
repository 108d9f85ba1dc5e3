package config

import (
	"bytes"
	"encoding/base64"
	"flag"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"filippo.io/age"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ageIdentity *age.X25519Identity

// Init loads flags and the YAML config. Values prefixed "age:" are decrypted
// with the identity at --agekey when unmarshalled through Unmarshal.
func Init() {
	flag.Bool("v", false, "Verbose")
	flag.String("c", "config.yaml", "Config file")
	flag.String("a", "age.key", "Age private key")

	viper.RegisterAlias("verbose", "v")
	viper.RegisterAlias("config", "c")
	viper.RegisterAlias("agekey", "a")

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)

	viper.SetDefault("port", "8080")
	viper.SetDefault("store", "finanza.db")
	viper.SetDefault("log_level", "info")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(filepath.Dir(viper.GetString("config")))
	viper.AddConfigPath("/etc/finanzaai/")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Warn().Msg("Config not found - using defaults")
		} else {
			log.Fatal().Err(err).Msg("Failed to load config")
		}
	}

	loadAgeIdentity()

	level, err := zerolog.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if viper.GetBool("verbose") {
		level = zerolog.TraceLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Msgf("Config: `%s`", viper.ConfigFileUsed())
}

// Unmarshal fills target from the named config section, decrypting any
// age-encrypted string values on the way through.
func Unmarshal(key string, target interface{}) error {
	return viper.UnmarshalKey(key, target, viper.DecodeHook(ageHookFunc()))
}

func loadAgeIdentity() {
	b, err := os.ReadFile(viper.GetString("agekey"))
	if err != nil {
		log.Debug().Msgf("No age key loaded: %s", err.Error())
		return
	}
	re := regexp.MustCompile(`(s?)#.*\n`)
	c := re.ReplaceAll(b, nil)
	ageIdentity, err = age.ParseX25519Identity(strings.Trim(string(c), "\n"))
	if err != nil {
		log.Fatal().Msgf("Failed to load age key: %s", err.Error())
	}
}

func decodeAge(s string) string {
	if ageIdentity == nil {
		log.Error().Msg("Encrypted value found but no age key loaded")
		return ""
	}
	enc := strings.TrimPrefix(s, "age:")
	eb, _ := base64.StdEncoding.DecodeString(enc)
	d, err := age.Decrypt(bytes.NewReader(eb), ageIdentity)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decrypt value")
		return ""
	}
	b := &bytes.Buffer{}
	io.Copy(b, d)
	return b.String()
}

func ageHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.String {
			return data, nil
		}
		if !strings.HasPrefix(data.(string), "age:") {
			return data, nil
		}
		return decodeAge(data.(string)), nil
	}
}
