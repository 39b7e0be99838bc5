/* Copyright 2026 The cartos Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// cartmq bridges a command router to an MQTT broker.
//
// Each message on the subscribed topic is one command line ("play" or
// "music:play"); command results and state notifications are
// published as JSON on the outbound topic.
//
// The command line args follow those for mosquitto_sub.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cartos-io/cartos/cartfile"
	"github.com/cartos-io/cartos/core"
	"github.com/cartos-io/cartos/interpreters"
	"github.com/cartos-io/cartos/router"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mountFlags collects repeated -mount NS=NAME[,PRIO[,boot]] args.
type mountFlags []string

func (ms *mountFlags) String() string {
	return strings.Join(*ms, " ")
}

func (ms *mountFlags) Set(value string) error {
	*ms = append(*ms, value)
	return nil
}

func main() {

	var (
		broker    = flag.String("h", "tcp://localhost", "Broker hostname")
		clientId  = flag.String("i", "cartmq", "Client id")
		port      = flag.Int("p", 1883, "Broker port")
		keepAlive = flag.Int("k", 600, "Keep-alive in seconds")
		userName  = flag.String("u", "", "Username")
		password  = flag.String("P", "", "Password")
		reconnect = flag.Bool("reconnect", false, "Automatically attempt to reconnect")
		clean     = flag.Bool("c", true, "Clean session")
		quiesce   = flag.Int("quiesce", 100, "Disconnection quiescence (in milliseconds)")

		certFilename = flag.String("cert", "", "Optional cert filename")
		keyFilename  = flag.String("key", "", "Optional key filename")
		insecure     = flag.Bool("insecure", false, "Skip broker cert checking")
		caFilename   = flag.String("cafile", "", "Optional CA cert filename")

		subTopic = flag.String("t", "cartos/commands", "Command topic")
		outTopic = flag.String("o", "cartos/out", "Result and notification topic")
		qos      = flag.Int("q", 0, "QoS for subscription and publication")

		cartridgeDir = flag.String("d", "cartridges", "cartridges directory")

		mounts mountFlags
	)
	flag.Var(&mounts, "mount", "Mount NS=NAME[,PRIO[,boot]] (repeatable)")

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mqtt.ERROR = log.New(os.Stderr, "mqtt.error", 0)

	r := router.New(interpreters.Standard())

	var client mqtt.Client

	publish := func(x interface{}) {
		js, err := json.Marshal(&x)
		if err != nil {
			log.Printf("publish Marshal error %v on %#v", err, x)
			return
		}
		if token := client.Publish(*outTopic, byte(*qos), false, js); token.Wait() && token.Error() != nil {
			log.Printf("publish error %v", token.Error())
		}
	}

	for _, m := range mounts {
		ns, name, opts, err := parseMount(m)
		if err != nil {
			log.Fatal(err)
		}
		def, err := cartfile.Read(filepath.Join(*cartridgeDir, name+".yaml"))
		if err != nil {
			log.Fatalf("couldn't read cartridge '%s': %s", name, err)
		}
		if err := r.Mount(ctx, def, ns, opts); err != nil {
			log.Fatalf("couldn't mount '%s': %s", ns, err)
		}
		namespace := ns
		if _, err := r.Subscribe(ns, func(n core.Notification) {
			go publish(map[string]interface{}{
				"namespace":    namespace,
				"notification": n,
			})
		}); err != nil {
			log.Fatal(err)
		}
		log.Printf("mounted %s as %s", name, ns)
	}

	opts := mqtt.NewClientOptions()

	if *port != 0 {
		*broker = fmt.Sprintf("%s:%d", *broker, *port)
	}
	log.Printf("broker: %s", *broker)
	opts.AddBroker(*broker)
	opts.SetClientID(*clientId)
	opts.SetKeepAlive(time.Second * time.Duration(*keepAlive))
	opts.SetPingTimeout(10 * time.Second)

	opts.Username = *userName
	opts.Password = *password
	opts.AutoReconnect = *reconnect
	opts.CleanSession = *clean

	var rootCAs *x509.CertPool
	if rootCAs, _ = x509.SystemCertPool(); rootCAs == nil {
		rootCAs = x509.NewCertPool()
		log.Printf("Including system CA certs")
	}
	if *caFilename != "" {
		certs, err := ioutil.ReadFile(*caFilename)
		if err != nil {
			log.Fatalf("couldn't read '%s': %s", *caFilename, err)
		}
		if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
			log.Println("No certs appended, using system certs only")
		}
	}

	var certs []tls.Certificate
	if *keyFilename != "" {
		cert, err := tls.LoadX509KeyPair(*certFilename, *keyFilename)
		if err != nil {
			log.Fatal(err)
		}
		certs = []tls.Certificate{cert}
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: *insecure,
		RootCAs:            rootCAs,
	}
	if certs != nil {
		tlsConf.Certificates = certs
	}
	opts.SetTLSConfig(tlsConf)

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost")
	}

	opts.DefaultPublishHandler = func(client mqtt.Client, msg mqtt.Message) {
		line := strings.TrimSpace(string(msg.Payload()))
		log.Printf("incoming: %s %s", msg.Topic(), line)
		if line == "" || strings.HasPrefix(line, "#") {
			return
		}
		res, err := r.Execute(ctx, line)
		if err != nil {
			publish(map[string]interface{}{
				"command": line,
				"error":   err.Error(),
			})
			return
		}
		publish(res)
	}

	client = mqtt.NewClient(opts)

	log.Printf("Attempting to connect to broker")
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal(token.Error())
	}
	log.Printf("Connected to broker")

	if token := client.Subscribe(*subTopic, byte(*qos), nil); token.Wait() && token.Error() != nil {
		log.Fatal(token.Error())
	}
	log.Printf("Subscribed to %s", *subTopic)

	<-ctx.Done()

	client.Disconnect(uint(*quiesce))
}

// parseMount reads NS=NAME[,PRIO[,boot]].
func parseMount(s string) (ns, name string, opts router.Options, err error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return "", "", opts, fmt.Errorf("bad mount '%s'", s)
	}
	ns = parts[0]
	rest := strings.Split(parts[1], ",")
	name = rest[0]
	for _, arg := range rest[1:] {
		if arg == "boot" {
			opts.AsBoot = true
			continue
		}
		p, err := strconv.Atoi(arg)
		if err != nil {
			return "", "", opts, fmt.Errorf("bad mount arg '%s'", arg)
		}
		opts.Priority = p
	}
	return ns, name, opts, nil
}
